package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/fieldscribe/fieldscribe/internal/config"
	"github.com/fieldscribe/fieldscribe/internal/recording"
)

// RunConfigure runs the interactive configuration wizard and saves the
// result. It starts from the existing configuration when one exists.
func RunConfigure() error {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return err
	}

	clearScreen()
	fmt.Println(StyleHeader.Render("fieldscribe configuration"))
	fmt.Println(StyleMuted.Render("Recordings with live transcripts. Esc cancels without saving."))
	fmt.Println()

	provider := cfg.Transcription.Provider
	apiKey := ""
	if pc, ok := cfg.Providers[provider]; ok {
		apiKey = pc.APIKey
	}
	language := cfg.Transcription.Language
	encoding := cfg.Capture.Encoding
	silenceTimeout := cfg.Capture.SilenceTimeout.String()
	maxDuration := cfg.Capture.MaxDuration.String()
	liveTranscription := cfg.Capture.LiveTranscription
	notifications := cfg.Notifications.Type
	if !cfg.Notifications.Enabled {
		notifications = "none"
	}
	outputDir := cfg.Output.Directory

	encodingOptions := []huh.Option[string]{
		huh.NewOption("Auto (first supported)", ""),
	}
	for _, enc := range recording.PreferredEncodings {
		encodingOptions = append(encodingOptions, huh.NewOption(enc.ID, enc.ID))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Transcription provider").
				Description("deepgram streams live captions; openai transcribes at stop").
				Options(
					huh.NewOption("Deepgram (streaming)", "deepgram"),
					huh.NewOption("OpenAI Whisper (at stop)", "openai"),
				).
				Value(&provider),

			huh.NewInput().
				Title("API key").
				Description("Leave empty to use the provider's environment variable").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),

			huh.NewInput().
				Title("Language").
				Description("ISO-639-1 code like 'en', empty for auto-detect").
				Value(&language),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Recording encoding").
				Options(encodingOptions...).
				Value(&encoding),

			huh.NewInput().
				Title("Silence timeout").
				Description("Auto-stop after this much continuous silence, e.g. 5s").
				Value(&silenceTimeout).
				Validate(validateDuration),

			huh.NewInput().
				Title("Maximum duration").
				Description("Hard capture cutoff, e.g. 5m").
				Value(&maxDuration).
				Validate(validateDuration),

			huh.NewConfirm().
				Title("Live transcription").
				Description("Stream captions while recording").
				Value(&liveTranscription),
		),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notifications").
				Options(
					huh.NewOption("Desktop", "desktop"),
					huh.NewOption("Log only", "log"),
					huh.NewOption("None", "none"),
				).
				Value(&notifications),

			huh.NewInput().
				Title("Output directory").
				Description("Where completed captures land, empty for the default").
				Value(&outputDir),
		),
	).WithTheme(getTheme())

	if err := form.Run(); err != nil {
		fmt.Println(StyleMuted.Render("Configuration cancelled."))
		return nil
	}

	if provider != cfg.Transcription.Provider {
		// Model names are provider-specific; switching providers resets
		// the model to that provider's default.
		cfg.Transcription.Model = config.DefaultModelForProvider(provider)
	}
	cfg.Transcription.Provider = provider
	cfg.Transcription.Language = language
	if apiKey != "" {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]config.ProviderConfig)
		}
		cfg.Providers[provider] = config.ProviderConfig{APIKey: apiKey}
	}
	cfg.Capture.Encoding = encoding
	cfg.Capture.SilenceTimeout, _ = time.ParseDuration(silenceTimeout)
	cfg.Capture.MaxDuration, _ = time.ParseDuration(maxDuration)
	cfg.Capture.LiveTranscription = liveTranscription
	cfg.Notifications.Enabled = notifications != "none"
	cfg.Notifications.Type = notifications
	cfg.Output.Directory = outputDir

	if err := cfg.Validate(); err != nil {
		fmt.Println(StyleError.Render("Invalid configuration: " + err.Error()))
		return err
	}

	if err := config.Save(cfg); err != nil {
		fmt.Println(StyleError.Render("Failed to save: " + err.Error()))
		return err
	}

	path, _ := config.GetConfigPath()
	fmt.Println(StyleSuccess.Render("Configuration saved to " + path))
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("use a Go duration like 5s or 2m")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func getTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorPrimary)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorSecondary)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorText)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSubtle)

	return t
}
