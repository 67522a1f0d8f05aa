package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/sopify/sopify/dbopen"
	"github.com/sopify/sopify/recorder"
)

// openState loads the recorder config and its state store. Used by the
// session commands, which run while no recorder is active.
func openState(cmd *cobra.Command) (*recorder.Config, *recorder.StateStore, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := recorder.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := dbopen.Open(cfg.StatePath, dbopen.WithMkdirAll())
	if err != nil {
		return nil, nil, err
	}
	store, err := recorder.NewStateStore(db)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the backend and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if email == "" || password == "" {
			return fmt.Errorf("--email and --password are required")
		}

		cfg, store, err := openState(cmd)
		if err != nil {
			return err
		}

		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		client := &http.Client{Timeout: 15 * time.Second}
		resp, err := client.Post(cfg.BackendURL+"/user/login", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("login request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var e struct {
				Error string `json:"error"`
			}
			json.NewDecoder(resp.Body).Decode(&e)
			if e.Error == "" {
				e.Error = resp.Status
			}
			return fmt.Errorf("login failed: %s", e.Error)
		}

		var out struct {
			Token string         `json:"token"`
			User  *recorder.User `json:"user"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode login response: %w", err)
		}

		ctx := context.Background()
		st, err := store.Load(ctx)
		if err != nil {
			return err
		}
		st.Authenticated = true
		st.Token = out.Token
		st.User = out.User
		if err := store.Save(ctx, st); err != nil {
			return err
		}

		name := email
		if out.User != nil && out.User.Name != "" {
			name = out.User.Name
		}
		fmt.Printf("Logged in as %s\n", name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session and pending screenshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := openState(cmd)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := store.Save(ctx, &recorder.State{Screenshots: []recorder.Screenshot{}}); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := openState(cmd)
		if err != nil {
			return err
		}

		st, err := store.Load(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("Backend:        %s\n", cfg.BackendURL)
		fmt.Printf("Authenticated:  %v\n", st.Authenticated && st.Token != "")
		if st.User != nil {
			fmt.Printf("User:           %s\n", st.User.Name)
		}
		fmt.Printf("Recording:      %v\n", st.Recording)
		fmt.Printf("Pending steps:  %d\n", len(st.Screenshots))
		return nil
	},
}

func init() {
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password")
}
