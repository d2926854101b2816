package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"voicecmd/internal/bridge"
	"voicecmd/internal/ipc"
	"voicecmd/internal/notify"
	"voicecmd/internal/proxy"
	"voicecmd/pkg/asr"
	"voicecmd/pkg/assistant"
	"voicecmd/pkg/audio"
	"voicecmd/pkg/command"
	"voicecmd/pkg/nlu"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	asrBackend := cli.String("asr", "local", "ASR backend: local or remote")
	modelPath := cli.StringP("model", "m", "models/ggml-base.en.bin", "Whisper model path (local ASR)")
	serverURL := cli.StringP("server", "s", "http://127.0.0.1:8080", "Whisper server URL (remote ASR)")
	nluBackend := cli.String("nlu", "rule", "NLU backend: rule or llm")
	llmModel := cli.String("llm-model", "gpt-5-nano", "Chat model for the llm NLU backend")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS proxy address for the llm backend")
	mode := cli.String("mode", "continuous", "Listening mode: continuous, wakeword, ptt")
	wakeWord := cli.StringP("wake-word", "w", "hey assistant", "Wake phrase for wakeword mode")
	busURL := cli.StringP("bus", "b", "", "Websocket bus URL for command events (optional)")
	chimePath := cli.String("chime", "", "Mp3 cue played on wake word (optional)")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	capture := audio.NewPortAudioCapture()
	if err := capture.Init(audio.CaptureConfig{DeviceID: -1}); err != nil {
		log.Error("Failed to init audio capture", "err", err)
		os.Exit(1)
	}
	defer capture.Shutdown()

	log.Debug("Loaded capture")

	asrEngine := buildASR(*asrBackend, *modelPath, *serverURL)
	defer asrEngine.Shutdown()

	log.Debug("Loaded asr", "backend", asrEngine.Name())

	nluEngine := buildNLU(*nluBackend, *llmModel, *proxyAddr)

	cfg := assistant.DefaultConfig()
	switch *mode {
	case "continuous":
		cfg.ListeningMode = assistant.ModeContinuous
	case "wakeword":
		cfg.ListeningMode = assistant.ModeWakeWord
		cfg.WakeWord = *wakeWord
	case "ptt":
		cfg.ListeningMode = assistant.ModePushToTalk
	default:
		log.Error("Unknown listening mode", "mode", *mode)
		os.Exit(1)
	}

	va, err := assistant.New(capture, asrEngine, nluEngine, cfg)
	if err != nil {
		log.Error("Failed to init assistant", "err", err)
		os.Exit(1)
	}

	registerCommands(va.Registry())

	var bus *bridge.Client
	if *busURL != "" {
		bus, err = bridge.Dial(*busURL, 0)
		if err != nil {
			log.Error("Failed to dial bus", "url", *busURL, "err", err)
			os.Exit(1)
		}
		defer bus.Close()
	}

	va.SetEvents(assistant.Events{
		SpeechDetected: func() {
			log.Debug("Speech detected")
		},
		WakeWordDetected: func() {
			log.Info("Wake word detected")
			if *chimePath != "" {
				if err := notify.Chime(*chimePath); err != nil {
					log.Warn("Chime failed", "err", err)
				}
			}
		},
		CaptureStarted: func() { log.Info("Capture started") },
		CaptureEnded:   func() { log.Info("Capture ended") },
		ListeningStateChanged: func(oldState, newState assistant.State) {
			log.Debug("State changed", "from", oldState.String(), "to", newState.String())
		},
		CommandExecuted: func(name string, result command.Result, ctx *command.Context) {
			log.Info("Command executed",
				"command", name,
				"result", result.String(),
				"transcript", ctx.RawTranscript(),
				"confidence", ctx.Confidence())
			if bus != nil {
				params := make(map[string]string)
				for k, v := range ctx.Params() {
					params[k] = v.AsString()
				}
				if err := bus.Publish(bridge.Message{
					From:       "voiced",
					Kind:       "command",
					Command:    name,
					Result:     result.String(),
					Transcript: ctx.RawTranscript(),
					Confidence: ctx.Confidence(),
					Params:     params,
				}); err != nil {
					log.Warn("Bus publish failed", "err", err)
				}
			}
		},
		Unrecognized: func(transcript string) {
			log.Warn("Unrecognized speech", "transcript", transcript)
		},
		Error: func(message string) {
			log.Warn("Recognition error", "err", message)
		},
	})

	if err := va.Start(); err != nil {
		log.Error("Failed to start assistant", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful", "mode", *mode)

	quit := make(chan struct{})

	if err := ipc.StartServer(func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case ipc.CmdStartCapture:
			if !va.StartCapture() {
				log.Warn("start-capture ignored", "state", va.State().String())
			}
		case ipc.CmdStopCapture:
			if !va.StopCapture() {
				log.Warn("stop-capture ignored", "state", va.State().String())
			}
		case ipc.CmdStop:
			close(quit)
		default:
			log.Warn("Unknown control command", "cmd", msg.Cmd)
		}
	}); err != nil {
		log.Error("Failed to start ipc server", "err", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case s := <-sig:
		log.Info("Signal received", "signal", s.String())
	}

	va.Stop()
	log.Info("Shut down")
}

func buildASR(backend, modelPath, serverURL string) asr.Engine {
	switch backend {
	case "local":
		engine, err := asr.NewWhisperEngine(modelPath, asr.WhisperOptions{Language: "auto"})
		if err != nil {
			log.Error("Failed to init whisper", "model", modelPath, "err", err)
			os.Exit(1)
		}
		return engine
	case "remote":
		engine, err := asr.NewRemoteEngine(asr.RemoteConfig{ServerURL: serverURL})
		if err != nil {
			log.Error("Failed to init remote asr", "url", serverURL, "err", err)
			os.Exit(1)
		}
		return engine
	}
	log.Error("Unknown asr backend", "backend", backend)
	os.Exit(1)
	return nil
}

func buildNLU(backend, model, proxyAddr string) nlu.Engine {
	switch backend {
	case "rule":
		return nlu.NewRuleEngine()
	case "llm":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			log.Error("OPENAI_API_KEY not set")
			os.Exit(1)
		}

		opts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if proxyAddr != "" {
			httpClient, err := proxy.NewSocksClient(proxyAddr, 0)
			if err != nil {
				log.Error("Failed to dial socks proxy", "proxy", proxyAddr, "err", err)
				os.Exit(1)
			}
			opts = append(opts, option.WithHTTPClient(httpClient))
			log.Debug("Loaded proxy")
		}

		client := openai.NewClient(opts...)
		return nlu.NewLLMEngine(client, nlu.LLMConfig{Model: model})
	}
	log.Error("Unknown nlu backend", "backend", backend)
	os.Exit(1)
	return nil
}

// registerCommands installs the built-in demo command set.
func registerCommands(reg *command.Registry) {
	reg.RegisterSimple("show_help",
		[]string{"show help", "help", "what can I say"},
		command.HandlerFunc(func(ctx *command.Context) command.Result {
			names := reg.AllNames()
			log.Info("Available commands", "commands", strings.Join(names, ", "))
			return command.Success
		}))

	reg.Register(command.Descriptor{
		Name:           "zoom_to",
		Description:    "Zoom the view to a level between 1 and 20",
		TriggerPhrases: []string{"zoom to", "zoom in to", "set zoom"},
		Parameters: []command.ParamDescriptor{
			{
				Name:     "level",
				Type:     command.TypeInteger,
				Required: true,
				MinValue: command.Float64(1),
				MaxValue: command.Float64(20),
			},
		},
	}, command.HandlerFunc(func(ctx *command.Context) command.Result {
		level, err := ctx.Param("level").AsInt()
		if err != nil {
			return command.InvalidParams
		}
		log.Info("Zooming", "level", level)
		return command.Success
	}))

	reg.Register(command.Descriptor{
		Name:           "change_color",
		Description:    "Change the active color",
		TriggerPhrases: []string{"change color to", "set color to"},
		Parameters: []command.ParamDescriptor{
			{Name: "color", Type: command.TypeString, Required: true},
		},
	}, command.HandlerFunc(func(ctx *command.Context) command.Result {
		log.Info("Changing color", "color", ctx.Param("color").AsString())
		return command.Success
	}))

	reg.Register(command.Descriptor{
		Name:           "set_brightness",
		Description:    "Set the display brightness",
		TriggerPhrases: []string{"set brightness", "change brightness to"},
		Parameters: []command.ParamDescriptor{
			{
				Name:         "value",
				Type:         command.TypeInteger,
				DefaultValue: "50",
				MinValue:     command.Float64(0),
				MaxValue:     command.Float64(100),
			},
		},
	}, command.HandlerFunc(func(ctx *command.Context) command.Result {
		value, err := ctx.Param("value").AsInt()
		if err != nil {
			return command.InvalidParams
		}
		log.Info("Setting brightness", "value", value)
		return command.Success
	}))
}
