package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modulesio/crds/core"
	"github.com/modulesio/crds/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{Use: "ledgernode"}
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(mineCmd())
	rootCmd.AddCommand(statusCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [config]",
		Short: "start a ledger node",
		Run: func(cmd *cobra.Command, args []string) {
			configPath := ""
			if len(args) > 0 {
				configPath = args[0]
			}
			if err := runStart(configPath); err != nil {
				fmt.Fprintln(os.Stderr, "ledgernode start:", err)
				os.Exit(1)
			}
		},
	}
}

func runStart(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	core.SetLogLevel(cfg.LogLevel)

	bus := core.NewEventBus()
	chain, persistence, err := core.Genesis(cfg.DataDirectory, core.DefaultScheme, bus, cfg.SelfURL)
	if err != nil {
		return err
	}

	replicator := core.NewReplicator(chain, cfg.SelfURL)
	for _, peer := range cfg.BootstrapPeers {
		replicator.AddPeer(peer)
	}

	server := core.NewServer(chain, replicator, core.DefaultScheme)

	ctx, cancel := context.WithCancel(context.Background())
	replicator.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		cancel()
		return err
	case <-sigCh:
	}

	cancel()
	replicator.Stop()
	server.Shutdown()
	persistence.WaitIdle()
	return nil
}

func mineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine <address>",
		Short: "start or stop mining against a running node",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			url, _ := cmd.Flags().GetString("url")
			stop, _ := cmd.Flags().GetBool("stop")
			if err := runMine(url, args[0], stop); err != nil {
				fmt.Fprintln(os.Stderr, "ledgernode mine:", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().String("url", "http://127.0.0.1:8080", "node URL")
	cmd.Flags().Bool("stop", false, "stop mining instead of starting it")
	return cmd
}

func runMine(url, address string, stop bool) error {
	body := map[string]interface{}{"address": address}
	if stop {
		body["address"] = nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(strings.TrimSuffix(url, "/")+"/mine", "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned status %d", resp.StatusCode)
	}
	if stop {
		fmt.Println("mining stopped")
	} else {
		fmt.Printf("mining started, rewarding %s\n", address)
	}
	return nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <url>",
		Short: "query a running node's status",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			url := "http://127.0.0.1:8080"
			if len(args) > 0 {
				url = args[0]
			}
			if err := runStatus(url); err != nil {
				fmt.Fprintln(os.Stderr, "ledgernode status:", err)
				os.Exit(1)
			}
		},
	}
}

func runStatus(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(url, "/") + "/status")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var status struct {
		StartHeight uint64 `json:"startHeight"`
		Timestamp   int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return err
	}
	fmt.Printf("startHeight=%d timestamp=%d\n", status.StartHeight, status.Timestamp)
	return nil
}
