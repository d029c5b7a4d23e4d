package pipeline

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lavahost/soundnode/internal/buffer"
	"github.com/lavahost/soundnode/internal/filters"
)

// FFmpegPipeline decodes media through an ffmpeg subprocess and re-encodes
// it to Opus, applying the track's filter chain as an -af filtergraph. Raw
// frames off ffmpeg's stdout are paced through an internal/buffer.PacedBuffer
// so a bursty decode doesn't hand the sink audio faster than it plays.
type FFmpegPipeline struct {
	cfg Config
	log zerolog.Logger

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	raw    chan []byte
	output <-chan []byte
	stuck  chan Stuck
	cancel context.CancelFunc
	err    error

	lastActivityNanos atomic.Int64
}

// New returns an FFmpegPipeline using cfg, tagged with label for logging
// (typically "guildID/sessionID").
func New(cfg Config, label string) *FFmpegPipeline {
	return &FFmpegPipeline{
		cfg:   cfg,
		log:   log.With().Str("component", "pipeline").Str("session", label).Logger(),
		raw:   make(chan []byte, cfg.OutputBufferFrames),
		stuck: make(chan Stuck, 1),
	}
}

func (p *FFmpegPipeline) Start(ctx context.Context, mediaURI string, chain filters.FilterChain, startPosition time.Duration) error {
	ctx, p.cancel = context.WithCancel(ctx)

	args := p.buildArgs(mediaURI, chain, startPosition)
	p.cmd = exec.CommandContext(ctx, "ffmpeg", args...)
	p.log.Debug().Strs("args", args).Msg("starting ffmpeg")

	var err error
	p.stdout, err = p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("pipeline: stdout pipe: %w", err)
	}
	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("pipeline: stderr pipe: %w", err)
	}
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("pipeline: start ffmpeg: %w", err)
	}

	paced := buffer.NewPacedBuffer(buffer.Config{
		Bitrate:   p.cfg.OpusBitrate,
		Prebuffer: p.cfg.Prebuffer,
		MaxBuffer: p.cfg.MaxBuffer,
		Interval:  p.cfg.FrameDuration,
	})
	p.output = paced.Start(ctx, p.raw)

	go p.readStderr()
	go p.readOutput(ctx)
	go p.watchStuck(ctx)

	return nil
}

func (p *FFmpegPipeline) buildArgs(mediaURI string, chain filters.FilterChain, startPosition time.Duration) []string {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_on_network_error", "1",
		"-reconnect_on_http_error", "4xx,5xx",
		"-reconnect_delay_max", "5",
	}

	if startPosition > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startPosition.Seconds()))
	}

	args = append(args, "-re", "-i", mediaURI)

	if graph := buildAudioFilterGraph(chain); graph != "" {
		args = append(args, "-af", graph)
	}

	args = append(args,
		"-ar", fmt.Sprintf("%d", p.cfg.SampleRate),
		"-ac", fmt.Sprintf("%d", p.cfg.Channels),
		"-c:a", "libopus",
		"-b:a", fmt.Sprintf("%d", p.cfg.OpusBitrate),
		"-vbr", "on",
		"-frame_duration", "20",
		"-application", "audio",
		"-f", "ogg",
		"-page_duration", "20000",
		"-flush_packets", "1",
		"-loglevel", "warning",
		"pipe:1",
	)

	return args
}

func (p *FFmpegPipeline) Output() <-chan []byte      { return p.output }
func (p *FFmpegPipeline) StuckEvents() <-chan Stuck { return p.stuck }
func (p *FFmpegPipeline) Err() error                { return p.err }

// Stop terminates the decode process and blocks until Output has actually
// closed, so callers can rely on "no further frames after Stop returns"
// exactly as the Pipeline interface promises. A watchdog bounds the wait in
// case the process or the pacing stage wedges rather than exiting cleanly.
func (p *FFmpegPipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	if p.output == nil {
		return
	}
	watchdog := time.NewTimer(5 * time.Second)
	defer watchdog.Stop()
	for {
		select {
		case _, ok := <-p.output:
			if !ok {
				return
			}
		case <-watchdog.C:
			p.log.Warn().Msg("stop watchdog expired before pipeline output closed")
			return
		}
	}
}

// Pause sends SIGSTOP to the decode process and drains buffered frames so
// playback does not replay stale audio on Resume.
func (p *FFmpegPipeline) Pause() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.cmd.Process.Signal(syscall.SIGSTOP)
	drained := 0
	for {
		select {
		case <-p.output:
			drained++
		default:
			if drained > 0 {
				p.log.Debug().Int("drained", drained).Msg("drained buffered frames on pause")
			}
			return
		}
	}
}

func (p *FFmpegPipeline) Resume() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.cmd.Process.Signal(syscall.SIGCONT)
}

func (p *FFmpegPipeline) readStderr() {
	if p.stderr == nil {
		return
	}
	defer p.stderr.Close()

	buf := make([]byte, 4096)
	var acc []byte
	for {
		n, err := p.stderr.Read(buf)
		if n > 0 {
			acc = append(acc, buf[:n]...)
			for {
				idx := indexByte(acc, '\n')
				if idx < 0 {
					break
				}
				line := string(acc[:idx])
				acc = acc[idx+1:]
				if len(line) > 0 {
					p.log.Debug().Str("stream", "stderr").Msg(line)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func (p *FFmpegPipeline) readOutput(ctx context.Context) {
	defer close(p.raw)
	defer p.stdout.Close()

	buf := make([]byte, p.cfg.ReadBufferSize)
	for {
		select {
		case <-ctx.Done():
			p.waitExit()
			return
		default:
		}

		n, err := p.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.lastActivityNanos.Store(time.Now().UnixNano())
			select {
			case p.raw <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				p.err = err
			}
			p.waitExit()
			return
		}
	}
}

func (p *FFmpegPipeline) waitExit() {
	if p.cmd == nil {
		return
	}
	if err := p.cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok && p.err == nil {
			p.err = err
		}
	}
}

// watchStuck reports a Stuck event whenever no output is observed for the
// configured threshold, mirroring trackStuckThresholdMs. It samples
// lastActivityNanos rather than the output channel itself, so it never
// competes with the real consumer for frames.
func (p *FFmpegPipeline) watchStuck(ctx context.Context) {
	if p.cfg.TrackStuckThreshold <= 0 {
		return
	}
	p.lastActivityNanos.Store(time.Now().UnixNano())

	ticker := time.NewTicker(p.cfg.TrackStuckThreshold)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, p.lastActivityNanos.Load())
			if time.Since(last) >= p.cfg.TrackStuckThreshold {
				select {
				case p.stuck <- Stuck{ThresholdMs: p.cfg.TrackStuckThreshold.Milliseconds()}:
				default:
				}
			}
		}
	}
}
