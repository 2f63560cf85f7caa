package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

// OpenFFmpeg starts an ffmpeg transcode of input (an URL or a file path)
// to s16le 48kHz stereo PCM on stdout, the format Resource expects. The
// returned cleanup kills the process once the stream is drained; extra
// calls are no-ops.
func OpenFFmpeg(ctx context.Context, ffmpegPath, input string) (io.ReadCloser, func(), error) {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	log.Debug().
		Str("input", input).
		Int("pid", cmd.Process.Pid).
		Msg("Started ffmpeg transcode")

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
			_ = cmd.Wait()
		})
	}
	return stdout, cleanup, nil
}
