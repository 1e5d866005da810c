// Command graphledger is the process entry point: it bootstraps an
// Engine, wires the in-process transport and dispatcher, parses the
// startup identity flags, and runs the stdin command loop. CLI argument
// parsing and the startup bootstrap that injects initial validator
// accounts are treated as external collaborators, so this file stays
// deliberately thin: glue, not a subsystem.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"graphledger/core"
	"graphledger/internal/config"
	"graphledger/internal/dispatcher"
)

const gossipTopic = "graphledger/blocks"

func main() {
	root := &cobra.Command{
		Use:   "graphledger",
		Short: "weighted-graph database with a ledger-anchored edge history",
		RunE:  runServe,
	}
	for k := 1; k <= 4; k++ {
		root.Flags().String(fmt.Sprintf("username%d", k), "", "account id of a locally-bootstrapped validator identity")
		root.Flags().String(fmt.Sprintf("key%d", k), "", "hex Ed25519 secret key for the matching username flag")
	}
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logrus.StandardLogger()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.WithError(err).Warn("using built-in defaults, config load failed")
		cfg = &config.Config{}
	}
	if cfg.Logging.Level != "" {
		if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
			log.SetLevel(lvl)
		}
	}

	engine := core.NewEngine(log)
	transport := dispatcher.NewMemTransport()
	disp := dispatcher.New(engine, transport, gossipTopic, log)

	stop := make(chan struct{})
	go func() {
		if err := disp.Run(stop); err != nil {
			log.WithError(err).Error("dispatcher stopped")
		}
	}()
	defer close(stop)

	if err := bootstrapIdentities(cmd, engine, log); err != nil {
		return err
	}

	return commandLoop(os.Stdin, os.Stdout, engine)
}

// bootstrapIdentities reads up to four username<k>/key<k> flag pairs,
// registers each as a local signing identity, and — for any account that
// already names an existing graph node — mines and appends the
// ValidatorData block that makes it usable on the inbound-consensus path.
// An account with no node yet (the common case for a completely fresh
// chain) is registered but left unannounced. It can still sign
// connection blocks locally once a node with that id exists, but Append
// records a public key → account association only for ValidatorData
// blocks, so mining a connection block does not announce it.
func bootstrapIdentities(cmd *cobra.Command, engine *core.Engine, log *logrus.Logger) error {
	for k := 1; k <= 4; k++ {
		username, _ := cmd.Flags().GetString(fmt.Sprintf("username%d", k))
		keyHex, _ := cmd.Flags().GetString(fmt.Sprintf("key%d", k))
		if username == "" && keyHex == "" {
			continue
		}
		if username == "" || keyHex == "" {
			return fmt.Errorf("username%d and key%d must be supplied together", k, k)
		}
		keys, err := core.KeyPairFromHex(keyHex)
		if err != nil {
			return fmt.Errorf("key%d: %w", k, err)
		}
		engine.RegisterLocalIdentity(username, keys)

		if _, err := engine.AnnounceValidator(username, keys); err != nil {
			log.WithError(err).WithField("username", username).Debug("validator announcement deferred, account node does not exist yet")
		}
	}
	return nil
}

// commandLoop reads one query per line from in, executes it, and writes
// the JSON-array result to out — the process's command-line surface.
func commandLoop(in *os.File, out *os.File, engine *core.Engine) error {
	scanner := bufio.NewScanner(in)
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rows := engine.ExecuteQuery(line)
		data, err := core.Serialize(rows)
		if err != nil {
			return fmt.Errorf("serialize result: %w", err)
		}
		fmt.Fprintln(writer, string(data))
		writer.Flush()
	}
	return scanner.Err()
}
