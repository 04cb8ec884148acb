package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/customerdir/internal/application/listsync"
	"github.com/erp/customerdir/internal/domain/customer"
)

// withSession opens a session for the duration of fn
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(s *session) error) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// finish renders the final list state and turns an error state into a command failure
func finish(cmd *cobra.Command, state listsync.State) error {
	if err := render(cmd.OutOrStdout(), state); err != nil {
		return err
	}
	if state.Kind() == listsync.KindError {
		return errReported
	}
	return nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Fetch and show all customers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, func(s *session) error {
				return finish(cmd, s.controller.Refresh(cmd.Context()))
			})
		},
	}
}

// candidateFlags are the editable customer fields
type candidateFlags struct {
	name   string
	email  string
	age    int
	gender string
}

func (f *candidateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Customer name")
	cmd.Flags().StringVar(&f.email, "email", "", "Customer email")
	cmd.Flags().IntVar(&f.age, "age", 0, "Customer age")
	cmd.Flags().StringVar(&f.gender, "gender", "", "Customer gender (MALE or FEMALE)")
}

// candidate returns the fields set on the command line. Unset fields keep
// their zero value so updates leave them untouched. A flag given explicitly
// must carry a value the server can store, since zero values are not sent.
func (f *candidateFlags) candidate(cmd *cobra.Command) (customer.Candidate, error) {
	var c customer.Candidate
	flags := cmd.Flags()
	if flags.Changed("name") {
		if strings.TrimSpace(f.name) == "" {
			return customer.Candidate{}, errors.New("--name cannot be empty")
		}
		c.Name = f.name
	}
	if flags.Changed("email") {
		if strings.TrimSpace(f.email) == "" {
			return customer.Candidate{}, errors.New("--email cannot be empty")
		}
		c.Email = f.email
	}
	if flags.Changed("age") {
		if f.age <= 0 {
			return customer.Candidate{}, fmt.Errorf("--age must be positive, got %d", f.age)
		}
		c.Age = f.age
	}
	if flags.Changed("gender") {
		g, err := customer.ParseGender(f.gender)
		if err != nil {
			return customer.Candidate{}, err
		}
		c.Gender = g
	}
	return c, nil
}

// changed reports whether any candidate flag was given
func (f *candidateFlags) changed(cmd *cobra.Command) bool {
	for _, name := range []string{"name", "email", "age", "gender"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var fields candidateFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a customer and show the refreshed list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			candidate, err := fields.candidate(cmd)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(s *session) error {
				if err := s.controller.Create(cmd.Context(), candidate); err != nil {
					return errReported
				}
				return finish(cmd, s.controller.State())
			})
		},
	}
	fields.register(cmd)
	for _, name := range []string{"name", "email", "age", "gender"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var fields candidateFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a customer and show the refreshed list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := customer.ParseID(args[0])
			if err != nil {
				return err
			}
			if !fields.changed(cmd) {
				return errors.New("nothing to update: set at least one of --name, --email, --age, --gender")
			}
			candidate, err := fields.candidate(cmd)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(s *session) error {
				if err := s.controller.Update(cmd.Context(), id, candidate); err != nil {
					return errReported
				}
				return finish(cmd, s.controller.State())
			})
		},
	}
	fields.register(cmd)
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a customer and show the refreshed list",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := customer.ParseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(s *session) error {
				if name == "" {
					// Only used for the confirmation text; a failed lookup is not fatal
					if rec, err := s.client.GetCustomer(cmd.Context(), id); err == nil {
						name = rec.Name
					} else {
						s.log.Debug("customer lookup failed", zap.Int64("id", int64(id)), zap.Error(err))
					}
				}
				if err := s.controller.Remove(cmd.Context(), id, name); err != nil {
					return errReported
				}
				return finish(cmd, s.controller.State())
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name shown in the confirmation (looked up when empty)")
	return cmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		count int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create customers with generated data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			return withSession(cmd, opts, func(s *session) error {
				faker := gofakeit.New(seed)
				failed := 0
				for range count {
					if err := s.controller.Create(cmd.Context(), fakeCandidate(faker)); err != nil {
						failed++
					}
					if cmd.Context().Err() != nil {
						break
					}
				}
				if err := finish(cmd, s.controller.State()); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d customers could not be created", failed, count)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of customers to create")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 = random)")
	return cmd
}

// fakeCandidate generates a customer that passes server validation
func fakeCandidate(f *gofakeit.Faker) customer.Candidate {
	gender := customer.GenderMale
	if f.Bool() {
		gender = customer.GenderFemale
	}
	return customer.Candidate{
		Name:   f.Name(),
		Email:  emailSafe(f.Email()),
		Age:    f.IntRange(18, 90),
		Gender: gender,
	}
}

// emailSafe drops characters such as the apostrophe in "O'Kon" that generated
// addresses may carry but the server rejects
func emailSafe(email string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("@._%+-", r):
			return r
		}
		return -1
	}, email)
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh the customer list periodically and print every state change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			return withSession(cmd, opts, func(s *session) error {
				return watch(cmd, s, interval, metricsAddr)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Refresh interval")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve controller metrics on this address, e.g. :9102")
	return cmd
}

func watch(cmd *cobra.Command, s *session, interval time.Duration, metricsAddr string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		s.log.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	unsubscribe := s.controller.Subscribe(func(state listsync.State) {
		if err := render(out, state); err != nil {
			s.log.Warn("render failed", zap.Error(err))
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.controller.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.controller.Refresh(ctx)
		}
	}
}
