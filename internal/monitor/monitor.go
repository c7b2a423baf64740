// Package monitor builds the operator usage report: stored objects
// aggregated per tenant from the object store, joined with the usage
// ledger's request totals.
package monitor

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/musefactory/mediacache/internal/ledger"
	"github.com/musefactory/mediacache/internal/storage"
)

// TenantReport is one tenant's row in the dashboard.
type TenantReport struct {
	Tenant      string
	Objects     int64
	StoredBytes int64
	Requests    int64
	CacheHits   int64
}

// Report is the full dashboard payload.
type Report struct {
	Provider    string
	Healthy     bool
	GeneratedAt time.Time
	Tenants     []TenantReport
	Objects     int64
	StoredBytes int64
}

// Health formats the provider health indicator.
func (r *Report) Health() string {
	if r.Healthy {
		return "ok"
	}
	return "unreachable"
}

// HitRate formats the tenant's cache hit percentage.
func (t TenantReport) HitRate() string {
	if t.Requests == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(t.CacheHits)/float64(t.Requests))
}

// StoredMB formats stored bytes in megabytes.
func (t TenantReport) StoredMB() string {
	return fmt.Sprintf("%.2f MB", float64(t.StoredBytes)/(1024*1024))
}

// BuildReport lists the store and aggregates objects by tenant prefix,
// then merges in ledger totals when a ledger is configured. Tenants seen
// only in the ledger still get a row.
func BuildReport(ctx context.Context, store storage.ObjectStore, usage *ledger.Ledger) (*Report, error) {
	objects, err := store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing stored objects: %w", err)
	}

	byTenant := make(map[string]*TenantReport)
	row := func(tenant string) *TenantReport {
		r, ok := byTenant[tenant]
		if !ok {
			r = &TenantReport{Tenant: tenant}
			byTenant[tenant] = r
		}
		return r
	}

	report := &Report{
		Provider:    store.Name(),
		Healthy:     store.HealthCheck(ctx) == nil,
		GeneratedAt: time.Now().UTC(),
	}
	for _, obj := range objects {
		tenant, _, found := strings.Cut(obj.Key, "/")
		if !found {
			tenant = "(unscoped)"
		}
		r := row(tenant)
		r.Objects++
		r.StoredBytes += obj.Size
		report.Objects++
		report.StoredBytes += obj.Size
	}

	if usage != nil {
		totals, err := usage.TenantTotals(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading usage ledger: %w", err)
		}
		for _, u := range totals {
			r := row(u.Tenant)
			r.Requests = u.Requests
			r.CacheHits = u.CacheHits
		}
	}

	for _, r := range byTenant {
		report.Tenants = append(report.Tenants, *r)
	}
	sort.Slice(report.Tenants, func(i, j int) bool {
		return report.Tenants[i].Tenant < report.Tenants[j].Tenant
	})
	return report, nil
}

var pageTemplate = template.Must(template.New("monitor").Parse(`<!DOCTYPE html>
<html>
<head>
<title>mediacache usage</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
th { background: #f0f0f0; }
</style>
</head>
<body>
<h1>mediacache usage</h1>
<p>Provider: {{.Provider}} ({{.Health}}) | Objects: {{.Objects}} | Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05 UTC"}}</p>
<table>
<tr><th>Tenant</th><th>Objects</th><th>Stored</th><th>Requests</th><th>Hit rate</th></tr>
{{range .Tenants}}<tr><td>{{.Tenant}}</td><td>{{.Objects}}</td><td>{{.StoredMB}}</td><td>{{.Requests}}</td><td>{{.HitRate}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// RenderHTML writes the dashboard page.
func RenderHTML(w io.Writer, r *Report) error {
	return pageTemplate.Execute(w, r)
}
