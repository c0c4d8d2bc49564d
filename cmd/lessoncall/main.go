// Lessoncall — terminal client for the lesson call server.
//
// It joins a booked lesson with an access token, negotiates the peer
// connection, and exposes chat, reactions, file transfer and background
// effects from the command line. Video frames come from a synthetic source;
// the terminal has no camera.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nqh2610/lophoconline-sub007/internal/adapters/rtc"
	"github.com/nqh2610/lophoconline-sub007/internal/call"
	"github.com/nqh2610/lophoconline-sub007/internal/channel"
	"github.com/nqh2610/lophoconline-sub007/internal/config"
	"github.com/nqh2610/lophoconline-sub007/internal/core"
	"github.com/nqh2610/lophoconline-sub007/internal/domain"
	"github.com/nqh2610/lophoconline-sub007/internal/effects"
	"github.com/nqh2610/lophoconline-sub007/internal/observability"
	"github.com/nqh2610/lophoconline-sub007/internal/prefs"
)

const frameWidth, frameHeight = 320, 240

type admissionInfo struct {
	Room     domain.RoomID   `json:"room"`
	Identity domain.Identity `json:"identity"`
	Role     domain.Role     `json:"role"`
	Window   struct {
		Open  time.Time `json:"open"`
		Close time.Time `json:"close"`
	} `json:"window"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	server := flag.String("server", "", "Lesson server base URL (e.g. https://call.example.com)")
	token := flag.String("token", "", "Lesson access token")
	prefsDir := flag.String("prefs", defaultPrefsDir(), "Preferences directory")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *debugMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	pterm.Info.Println("Lessoncall")
	pterm.Println()

	base := normalizeServerURL(askIfEmpty(*server, "Lesson server URL"))
	tok := askIfEmpty(*token, "Access token")

	adm, err := probeAdmission(ctx, base, tok)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	pterm.Success.Printf("admitted to %s as %s (%s)\n", adm.Room, adm.Identity, adm.Role)
	pterm.Printf("join window: %s to %s\n\n",
		adm.Window.Open.Local().Format(time.Kitchen),
		adm.Window.Close.Local().Format(time.Kitchen))

	if err := runCall(ctx, base, tok, adm, *prefsDir, *metricsAddr); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	pterm.Info.Println("call ended")
}

func runCall(ctx context.Context, base, token string, adm *admissionInfo, prefsDir, metricsAddr string) error {
	store, err := prefs.NewStore(prefsDir)
	if err != nil {
		return err
	}
	loaded, err := store.Load(adm.Identity)
	if err != nil {
		log.Warn().Err(err).Msg("preferences unreadable, using defaults")
	}
	pr := &prefsBox{p: loaded}
	defer func() {
		if err := store.Save(adm.Identity, pr.get()); err != nil {
			log.Warn().Err(err).Msg("preferences not saved")
		}
	}()

	met := observability.NewMetrics("lessoncall")
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.MetricsHandler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Warn().Err(err).Msg("metrics endpoint")
			}
		}()
	}

	cfg := clientDefaults()
	sig := call.NewSignalClient(base, token, cfg.SignalRetries, cfg.SignalRetryDelay, cfg.PingPeriod)
	go func() {
		if err := sig.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("signaling")
		}
	}()

	track, err := rtc.NewFrameTrack("video", "lessoncall")
	if err != nil {
		return err
	}

	segmenter := effects.NewColorDistanceSegmenter()
	pipeline := effects.NewPipeline(segmenter, cfg.SegmentInterval, cfg.RenderInterval)
	applyEffectPrefs(pipeline, pr.get())
	pipeline.OnOutput(func(f *effects.Frame) {
		if pr.get().CameraOn {
			_ = track.Push(f.Pix, 90000/30)
		}
	})
	pipeline.OnSegmentLatency(met.ObserveSegmentLatency)
	pipeline.OnDegraded(met.DegradedFrames.Inc)
	go pipeline.Run(ctx)
	go syntheticSource(ctx, pipeline, segmenter, cfg.RenderInterval)

	mux := channel.NewMux(adm.Identity, func(meta channel.FileMeta, data []byte) {
		path := filepath.Join(os.TempDir(), meta.Name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			pterm.Warning.Printf("could not save %s: %v\n", meta.Name, err)
			return
		}
		pterm.Success.Printf("received %s (%d bytes) -> %s\n", meta.Name, meta.Size, path)
	})
	mux.OnBytes(func(n int) { met.FileTransferBytes.Add(float64(n)) })
	mux.OnChat(func(m channel.ChatMessage) {
		pterm.Printf("%s: %s\n", m.From, m.Text)
	})
	mux.OnControl(func(m channel.ControlMessage) {
		if m.Kind == channel.CtrlReaction {
			pterm.Printf("%s reacted %s\n", m.From, m.Value)
		}
	})

	ctrl := call.NewController(call.Config{
		Room:               adm.Room,
		Identity:           adm.Identity,
		Role:               adm.Role,
		RemountWindow:      cfg.RemountWindow,
		NegotiationTimeout: cfg.NegotiationTimeout,
		PeerLeftHold:       2 * time.Second,
	}, sig, func() (core.MediaConnection, error) {
		return rtc.NewWebRTCConnection(rtc.DefaultWebRTCConfig(), sig.ConnID())
	})
	ctrl.OnState(func(s call.State) {
		pterm.Info.Printf("call: %s\n", s)
	})
	ctrl.OnNotice(func(n call.Notice) {
		pterm.Warning.Println(n.Text)
	})
	ctrl.OnPeerGone(func() {
		pterm.Warning.Println("the other participant has not returned; keep waiting or /quit")
	})
	ctrl.OnMediaAttempt(func(media core.MediaConnection) {
		if err := mux.Attach(media, adm.Role == domain.RoleTutor); err != nil {
			log.Error().Err(err).Msg("channel attach")
		}
		if _, err := media.AddLocalTrack(track.Track()); err != nil {
			log.Error().Err(err).Msg("add track")
		}
	})
	go ctrl.Run(ctx)
	defer ctrl.Teardown()

	go func() {
		if err := ctrl.Initialize(ctx); err != nil && ctx.Err() == nil {
			pterm.Error.Printf("could not connect: %v\n", err)
		}
	}()

	return inputLoop(ctx, mux, pipeline, pr)
}

func inputLoop(ctx context.Context, mux *channel.Mux, pipeline *effects.Pipeline, pr *prefsBox) error {
	pterm.Println("type a message, or /react <emoji>, /send <file>, /effect none|blur|replace, /background <image>, /blur <radius>, /mute, /camera, /quit")
	for ctx.Err() == nil {
		line, _ := pterm.DefaultInteractiveTextInput.WithDefaultText(">").Show()
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case line == "/quit":
			return nil
		case line == "/mute":
			p := pr.update(func(p *prefs.Preferences) { p.MicOn = !p.MicOn })
			_ = mux.SendControl(channel.CtrlMicState, p.MicOn, "")
			pterm.Info.Printf("mic on: %v\n", p.MicOn)
		case line == "/camera":
			p := pr.update(func(p *prefs.Preferences) { p.CameraOn = !p.CameraOn })
			_ = mux.SendControl(channel.CtrlCameraState, p.CameraOn, "")
			pterm.Info.Printf("camera on: %v\n", p.CameraOn)
		case strings.HasPrefix(line, "/react "):
			mux.SendReaction(strings.TrimSpace(strings.TrimPrefix(line, "/react ")))
		case strings.HasPrefix(line, "/effect "):
			mode := effects.Mode(strings.TrimSpace(strings.TrimPrefix(line, "/effect ")))
			switch mode {
			case effects.ModeNone, effects.ModeBlur, effects.ModeReplace:
			default:
				pterm.Warning.Println("effects: none, blur, replace")
				continue
			}
			if mode == effects.ModeReplace && pr.get().Background == "" {
				pterm.Warning.Println("set an image first with /background <image>")
				continue
			}
			pipeline.SetMode(mode)
			pr.update(func(p *prefs.Preferences) { p.EffectMode = mode })
			_ = mux.SendControl(channel.CtrlEffectState, mode != effects.ModeNone, string(mode))
		case strings.HasPrefix(line, "/background "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/background "))
			bg, err := effects.LoadBackground(path, frameWidth, frameHeight)
			if err != nil {
				pterm.Warning.Printf("cannot use %s: %v\n", path, err)
				continue
			}
			pipeline.SetBackground(bg)
			pr.update(func(p *prefs.Preferences) { p.Background = path })
			pterm.Info.Printf("background set to %s\n", path)
		case strings.HasPrefix(line, "/blur "):
			r, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/blur ")))
			if err != nil || r <= 0 {
				pterm.Warning.Println("blur radius must be a positive number")
				continue
			}
			pipeline.SetBlurRadius(r)
			pr.update(func(p *prefs.Preferences) { p.BlurRadius = r })
			pterm.Info.Printf("blur radius: %d\n", r)
		case strings.HasPrefix(line, "/send "):
			sendFile(mux, strings.TrimSpace(strings.TrimPrefix(line, "/send ")))
		default:
			if err := mux.SendChat(line); err != nil {
				pterm.Warning.Printf("not sent: %v\n", err)
			}
		}
	}
	return ctx.Err()
}

// applyEffectPrefs restores the persisted effect setup before any frames
// flow. A stored background that no longer loads drops the mode back to
// none instead of silently streaming the raw frame under a replace label.
func applyEffectPrefs(pipeline *effects.Pipeline, p prefs.Preferences) {
	pipeline.SetBlurRadius(p.BlurRadius)
	if p.Background != "" {
		bg, err := effects.LoadBackground(p.Background, frameWidth, frameHeight)
		if err != nil {
			pterm.Warning.Printf("stored background unusable: %v\n", err)
			if p.EffectMode == effects.ModeReplace {
				p.EffectMode = effects.ModeNone
			}
		} else {
			pipeline.SetBackground(bg)
		}
	}
	pipeline.SetMode(p.EffectMode)
}

// prefsBox guards the live preferences: the render loop reads them while
// the input loop mutates them.
type prefsBox struct {
	mu sync.Mutex
	p  prefs.Preferences
}

func (b *prefsBox) get() prefs.Preferences {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.p
}

func (b *prefsBox) update(fn func(*prefs.Preferences)) prefs.Preferences {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.p)
	return b.p
}

func sendFile(mux *channel.Mux, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		pterm.Warning.Printf("cannot read %s: %v\n", path, err)
		return
	}
	id, err := mux.SendFile(filepath.Base(path), "application/octet-stream", data)
	if err != nil {
		pterm.Warning.Printf("cannot send %s: %v\n", path, err)
		return
	}
	pterm.Success.Printf("sending %s (%d bytes, transfer %s)\n", filepath.Base(path), len(data), id)
}

// syntheticSource feeds the pipeline a moving gradient. The first frame
// calibrates the segmenter as the empty background.
func syntheticSource(ctx context.Context, pipeline *effects.Pipeline, seg *effects.ColorDistanceSegmenter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		f := effects.NewFrame(frameWidth, frameHeight)
		f.Seq = seq
		f.At = time.Now()
		shade := byte(seq % 256)
		for p := 0; p < frameWidth*frameHeight; p++ {
			off := p * 4
			f.Pix[off] = shade
			f.Pix[off+1] = byte(p % 256)
			f.Pix[off+2] = 128
			f.Pix[off+3] = 255
		}
		if seq == 0 {
			seg.Calibrate(f)
		}
		pipeline.Push(f)
		seq++
	}
}

func probeAdmission(ctx context.Context, base, token string) (*admissionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/admission?token=%s", base, url.QueryEscape(token)), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("admission refused: %s", admissionText(body.Error))
	}
	var info admissionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

func admissionText(reason string) string {
	switch reason {
	case "unknown_token":
		return "this link is not valid"
	case "not_yet_open":
		return "the lesson has not opened yet, try again closer to the start time"
	case "expired":
		return "the lesson window has closed"
	case "revoked":
		return "this booking was canceled or is unpaid"
	default:
		return "the server refused the connection"
	}
}

// clientDefaults mirrors the server-side defaults for the client-only knobs.
func clientDefaults() *config.Config {
	return &config.Config{
		PingPeriod:         54 * time.Second,
		RemountWindow:      3 * time.Second,
		NegotiationTimeout: 15 * time.Second,
		SignalRetries:      5,
		SignalRetryDelay:   time.Second,
		SegmentInterval:    200 * time.Millisecond,
		RenderInterval:     33 * time.Millisecond,
	}
}

func defaultPrefsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lessoncall"
	}
	return filepath.Join(home, ".lessoncall")
}

func askIfEmpty(val, prompt string) string {
	for strings.TrimSpace(val) == "" {
		val, _ = pterm.DefaultInteractiveTextInput.WithDefaultText(prompt).Show()
	}
	return strings.TrimSpace(val)
}

func normalizeServerURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw
}
