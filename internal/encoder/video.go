package encoder

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	mcerr "github.com/musefactory/mediacache/internal/errors"
	"github.com/musefactory/mediacache/internal/transform"
	"github.com/musefactory/mediacache/internal/uid"
)

// VideoEncoder transcodes video buffers by shelling out to ffmpeg.
// ffmpeg reads and writes regular files, so each invocation gets
// uniquely named temp files that are removed on every exit path.
type VideoEncoder struct {
	ffmpegPath string
	workDir    string
}

// NewVideoEncoder locates ffmpeg (explicit path, or PATH lookup when
// empty) and returns a VideoEncoder working under the system temp dir.
func NewVideoEncoder(ffmpegPath string) (*VideoEncoder, error) {
	if ffmpegPath == "" {
		p, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found: %w", err)
		}
		ffmpegPath = p
	}
	return &VideoEncoder{ffmpegPath: ffmpegPath, workDir: os.TempDir()}, nil
}

// Encode transcodes src to the requested container/codec. Runs to
// completion once started; the transcode itself is not cancellable.
// The descriptor reports the requested width cap, not the measured
// output width; the container is not probed after encoding.
func (e *VideoEncoder) Encode(src []byte, opts transform.Options) ([]byte, Descriptor, error) {
	if !opts.Format.Video() {
		return nil, Descriptor{}, mcerr.Encoding(fmt.Sprintf("format %q is not a video format", opts.Format), nil)
	}

	id := uid.New()
	inPath := filepath.Join(e.workDir, "mediacache-in-"+id)
	outPath := filepath.Join(e.workDir, "mediacache-out-"+id+"."+opts.Format.Ext())
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, src, 0o600); err != nil {
		return nil, Descriptor{}, mcerr.Encoding("writing transcode input", err)
	}

	args := transcodeArgs(inPath, outPath, opts)
	cmd := exec.Command(e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, Descriptor{}, mcerr.Encoding(
			fmt.Sprintf("ffmpeg failed: %s", truncate(stderr.String(), 512)), err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, Descriptor{}, mcerr.Encoding("reading transcode output", err)
	}

	return data, Descriptor{
		Format: opts.Format,
		Width:  opts.Width,
		Size:   len(data),
	}, nil
}

// transcodeArgs builds the ffmpeg argument list. The scale filter is
// downscale-only: min(requested, input width), height follows the aspect
// ratio rounded to an even value as the codecs require.
func transcodeArgs(inPath, outPath string, opts transform.Options) []string {
	args := []string{"-y", "-i", inPath}

	if opts.Width > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale='min(%d,iw)':-2", opts.Width))
	}

	switch opts.Format {
	case transform.FormatWebM:
		args = append(args, "-f", "webm", "-c:v", "libvpx-vp9", "-c:a", "libopus", "-b:v", "0")
	default:
		args = append(args, "-f", "mp4", "-c:v", "libx264", "-c:a", "aac",
			"-preset", "ultrafast", "-movflags", "+faststart")
	}

	args = append(args, "-crf", fmt.Sprintf("%d", crfForQuality(opts.Quality)), outPath)
	return args
}

// crfForQuality maps the 0-100 quality scale onto ffmpeg's CRF scale
// (lower is better): quality 100 gives CRF 18 (visually lossless),
// quality 80 the standard CRF 24, quality 0 the worst CRF 51.
func crfForQuality(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return 51 - quality*33/100
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Encoder = (*VideoEncoder)(nil)
