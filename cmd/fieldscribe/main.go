package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldscribe/fieldscribe/internal/bus"
	"github.com/fieldscribe/fieldscribe/internal/config"
	"github.com/fieldscribe/fieldscribe/internal/daemon"
	"github.com/fieldscribe/fieldscribe/internal/probe"
	"github.com/fieldscribe/fieldscribe/internal/tui"
	"github.com/spf13/cobra"
)

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "fieldscribe",
	Short: "Dual-mode audio capture: recordings with live transcripts",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		startCmd(),
		stopCmd(),
		pauseCmd(),
		resumeCmd(),
		cancelCmd(),
		statusCmd(),
		versionCmd(),
		quitCmd(),
		probeCmd(),
		configureCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the capture daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := config.NewManager()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return daemon.New(manager).Run()
		},
	}
}

func sendCmd(use, short string, b byte, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(b)
			if err != nil {
				return fmt.Errorf("failed to %s: %w", verb, err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	return sendCmd("start", "Start a capture", bus.CmdStart, "start capture")
}

func stopCmd() *cobra.Command {
	return sendCmd("stop", "Stop the capture and save the result", bus.CmdStop, "stop capture")
}

func pauseCmd() *cobra.Command {
	return sendCmd("pause", "Pause the capture", bus.CmdPause, "pause capture")
}

func resumeCmd() *cobra.Command {
	return sendCmd("resume", "Resume a paused capture", bus.CmdResume, "resume capture")
}

func cancelCmd() *cobra.Command {
	return sendCmd("cancel", "Cancel the capture, discarding all audio", bus.CmdCancel, "cancel capture")
}

func statusCmd() *cobra.Command {
	return sendCmd("status", "Get current capture status", bus.CmdStatus, "get status")
}

func versionCmd() *cobra.Command {
	return sendCmd("version", "Get protocol version", bus.CmdVersion, "get version")
}

func quitCmd() *cobra.Command {
	return sendCmd("quit", "Stop the daemon", bus.CmdQuit, "stop daemon")
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report host capture capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			caps := probe.Probe(ctx, cfg.ToTranscriberConfig().APIKey != "")
			fmt.Printf("microphone:         %v\n", caps.Microphone)
			fmt.Printf("recorder:           %v\n", caps.Recorder)
			fmt.Printf("live transcription: %v\n", caps.LiveTranscription)
			fmt.Printf("encodings:\n")
			for _, enc := range caps.Encodings {
				fmt.Printf("  %s\n", enc.ID)
			}
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunConfigure()
		},
	}
}
