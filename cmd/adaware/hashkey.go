package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/straja-ai/adaware/internal/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Print the bcrypt hash of an API key for security.clients[].api_key_hashes",
	Long:  "Reads the key from the argument or, when omitted, from the first line of stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read key from stdin: %w", err)
			}
			key = strings.TrimSpace(line)
		}
		hash, err := auth.HashKey(key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return err
	},
}
