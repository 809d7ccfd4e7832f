package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/straja-ai/adaware/internal/engine"
	"github.com/straja-ai/adaware/internal/signals"
)

var (
	analyzeText    string
	analyzePageURL string
	analyzeOpinion bool
	analyzeFormat  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [bundle.json|-]",
	Short: "Score one ad from flags or a JSON signal bundle and print the result",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := readBundle(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())

		res, err := a.engine.Evaluate(cmd.Context(), b, engine.Options{UseOpinion: analyzeOpinion, ClientID: "cli"})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch analyzeFormat {
		case "text":
			_, err = fmt.Fprintln(out, renderReport(res))
			return err
		case "json":
			return writeResult(out, res, true)
		case "compact":
			return writeResult(out, res, false)
		case "", "auto":
			if isTerminal(out) {
				_, err = fmt.Fprintln(out, renderReport(res))
				return err
			}
			return writeResult(out, res, false)
		default:
			return fmt.Errorf("unknown --format %q (auto, text, json, compact)", analyzeFormat)
		}
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeText, "text", "t", "", "ad text (OCR output)")
	analyzeCmd.Flags().StringVar(&analyzePageURL, "url", "", "landing page url")
	analyzeCmd.Flags().BoolVar(&analyzeOpinion, "opinion", false, "ask the configured opinion provider")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "o", "auto", "auto (report on a terminal, JSON otherwise), text, json or compact")
}

// readBundle decodes the bundle file named in args ("-" is stdin) and
// lets --text and --url override its fields.
func readBundle(stdin io.Reader, args []string) (signals.Bundle, error) {
	var b signals.Bundle
	if len(args) == 1 {
		var r io.Reader = stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return b, fmt.Errorf("open bundle: %w", err)
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&b); err != nil {
			return b, fmt.Errorf("decode bundle: %w", err)
		}
	}
	if analyzeText != "" {
		b.Text = analyzeText
	}
	if analyzePageURL != "" {
		b.PageURL = analyzePageURL
	}
	if b.Text == "" && b.ImageRef == "" && b.Vision == nil {
		return b, fmt.Errorf("nothing to analyze: pass --text or a bundle file")
	}
	return b, nil
}

func writeResult(w io.Writer, res *engine.Result, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}
