package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nateesh/polygon-options-agg/pkg/auth"
)

var (
	authProfile string
	loginKey    string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored API key",
	Long: `Store, inspect and remove the market-data API key.

Keys are kept in the system keyring when one is available, otherwise in an
encrypted file in the user config directory. Never share your key or the
files it is stored in!`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API key",
	Long:  `Prompt for an API key (input is hidden) and store it securely.`,
	Example: `  # Interactive
  polyagg auth login

  # Non-interactive
  polyagg auth login --key "$POLYGON_KEY"`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which key a fetch would use",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain where to get an API key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowAPIKeyGuide(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(guideCmd)

	authCmd.PersistentFlags().StringVar(&authProfile, "profile", auth.DefaultProfile, "credential profile")
	loginCmd.Flags().StringVar(&loginKey, "key", "", "API key to store instead of prompting")
}

func newAuthManager() (*auth.Manager, error) {
	dir, err := auth.ConfigDir()
	if err != nil {
		return nil, err
	}
	manager, err := auth.NewManager(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	return manager, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := newAuthManager()
	if err != nil {
		return err
	}

	key := strings.TrimSpace(loginKey)
	if key == "" {
		if existing, _, err := manager.Retrieve(authProfile); err == nil && existing != nil {
			fmt.Printf("A key is already stored for '%s' (%s). Replace it? (y/N): ", authProfile, auth.MaskKey(existing.APIKey))
			answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
				return nil
			}
		}

		fmt.Print("API key: ")
		key, err = readPassword()
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
	}
	if key == "" {
		return errors.New("API key is required")
	}

	store, err := manager.Store(&auth.Credential{Profile: authProfile, APIKey: key})
	if err != nil {
		return err
	}

	printer := newPrinter()
	printer.Success(fmt.Sprintf("API key saved for profile '%s'", authProfile))
	printer.Info("Stored in", store)
	printer.Info("Key", auth.MaskKey(key))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := newAuthManager()
	if err != nil {
		return err
	}
	if err := manager.Delete(authProfile); err != nil {
		return err
	}
	newPrinter().Success(fmt.Sprintf("API key removed for profile '%s'", authProfile))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := newAuthManager()
	if err != nil {
		return err
	}

	printer := newPrinter()
	var names []string
	for _, s := range manager.Stores() {
		names = append(names, s.Name())
	}
	printer.Info("Stores", strings.Join(names, ", "))

	creds, _ := manager.List()
	sort.Slice(creds, func(i, j int) bool { return creds[i].Profile < creds[j].Profile })
	for _, c := range creds {
		printer.Info("Profile "+c.Profile, auth.MaskKey(c.APIKey))
	}

	// the same lookup fetch performs, including flag, env and config sources
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	resolver := &auth.Resolver{
		Manager:   manager,
		CredsFile: auth.NewCredsFile(auth.DefaultCredsFile),
		Profile:   authProfile,
	}
	key, source, err := resolver.Resolve(cfg.API.Key)
	if err != nil {
		printer.Warning("No API key found. Run 'polyagg auth login' or 'polyagg auth guide'")
		return nil
	}
	printer.Info("Fetch would use", fmt.Sprintf("%s (from %s)", auth.MaskKey(key), source))
	return nil
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
