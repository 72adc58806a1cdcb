package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/g3/tornado/internal/adapters/auth"
	"github.com/g3/tornado/internal/adapters/objectstore"
	"github.com/g3/tornado/internal/adapters/scheduler"
	serveradapter "github.com/g3/tornado/internal/adapters/server"
	"github.com/g3/tornado/internal/adapters/server/common"
	"github.com/g3/tornado/internal/app"
	"github.com/g3/tornado/internal/config"
	"github.com/spf13/cobra"
)

// newServeCommand runs the HTTP API and MCP endpoint.
func newServeCommand(flags *rootFlags) *cobra.Command {
	var bind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer func() {
				_ = s.Close()
			}()
			ctx := cmd.Context()

			tokens, err := s.tokens()
			if err != nil {
				return err
			}

			var opts []app.ServiceOption
			if s.cfg.Storage.Enabled {
				objects, err := objectstore.New(objectstore.Config{
					Endpoint:  s.cfg.Storage.Endpoint,
					AccessKey: s.cfg.Storage.AccessKey,
					SecretKey: s.cfg.Storage.SecretKey,
					Bucket:    s.cfg.Storage.Bucket,
					Region:    s.cfg.Storage.Region,
					UseSSL:    s.cfg.Storage.UseSSL,
				})
				if err != nil {
					return err
				}
				if err := objects.EnsureBucket(ctx); err != nil {
					return err
				}
				opts = append(opts, app.WithObjectStore(objects))
				s.logger.Info("screenshot storage enabled", "endpoint", s.cfg.Storage.Endpoint, "bucket", s.cfg.Storage.Bucket)
			}
			notifier, err := s.notifier()
			if err != nil {
				return err
			}
			opts = append(opts, app.WithNotifier(notifier))
			s.start(opts...)

			if s.cfg.Notify.Enabled {
				job, err := scheduler.NewDigestJob(s.svc, s.cfg.DigestInterval(), s.logger.Component("scheduler"))
				if err != nil {
					return err
				}
				if err := job.Start(ctx); err != nil {
					return err
				}
				defer job.Stop()
			}

			serverCfg := serveradapter.Config{
				HTTPBind:      firstNonEmpty(bind, s.cfg.Server.HTTPBind),
				APIEndpoint:   firstNonEmpty(apiEndpoint, s.cfg.Server.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, s.cfg.Server.MCPEndpoint),
				ServerName:    appNameOf(flags),
				ServerVersion: version,
			}
			s.logger.Info("command flow start", "command", "serve", "bind", serverCfg.HTTPBind, "driver", s.cfg.Database.Driver)
			err = serveCommandRunner(ctx, serverCfg, serveradapter.Dependencies{
				Tracker:       s.tracker,
				Authenticator: common.NewAuthenticator(tokens, s.svc),
				Ready:         s.repo.Ping,
				Logger:        s.logger.Component("http"),
			})
			if err != nil {
				s.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			s.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "http", "", "listen address (default from server.http_bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base path")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path")
	return cmd
}

// newTokenCommand mints a bearer token for the CLI identity.
func newTokenCommand(flags *rootFlags) *cobra.Command {
	var copyOut bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withActor(cmd, flags, func(ctx context.Context, s *session) error {
				tokens, err := s.tokens()
				if err != nil {
					return err
				}
				user, err := s.repo.GetUser(ctx, s.actor.UserID)
				if err != nil {
					return err
				}
				token, err := tokens.Issue(user.ID, user.Email, user.DisplayName)
				if err != nil {
					return err
				}
				if copyOut {
					if err := copyToClipboard(token); err != nil {
						return fmt.Errorf("copy token: %w", err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "token for %s copied to clipboard\n", user.ID)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&copyOut, "copy", false, "copy to the clipboard instead of printing")
	return cmd
}

// tokens builds the signer from auth config.
func (s *session) tokens() (*auth.Tokens, error) {
	if strings.TrimSpace(s.cfg.Auth.JWTSecret) == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required (or set %sJWT_SECRET)", config.EnvPrefix)
	}
	return auth.New(auth.Config{
		Secret:           s.cfg.Auth.JWTSecret,
		Issuer:           s.cfg.Auth.Issuer,
		TokenTTL:         s.cfg.TokenTTL(),
		ImpersonationTTL: s.cfg.ImpersonationTTL(),
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
