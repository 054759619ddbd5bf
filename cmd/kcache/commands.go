package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/keyedcache"
	"github.com/unkn0wn-root/keyedcache/dependency"
)

func newKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "key <key>",
		Short: "Print the storage key for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.cache.BuildKey(args[0]))
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached value; exits 1 on a miss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := a.cache.Get(cmd.Context(), args[0])
			if !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "(miss)")
				return errMiss
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newMGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mget <key>...",
		Short: "Print key<TAB>value for every key; misses print (miss)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]any, len(args))
			for i, k := range args {
				keys[i] = k
			}
			for _, r := range a.cache.MultiGet(cmd.Context(), keys) {
				v := r.Value
				if !r.Hit {
					v = "(miss)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%v\t%s\n", r.Key, v)
			}
			return nil
		},
	}
}

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <key>",
		Short: "Report whether a key is present (dependencies are not checked)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := a.cache.Exists(cmd.Context(), args[0])
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			if !ok {
				return errMiss
			}
			return nil
		},
	}
}

// newSetCmd builds "set" or, with add, "add".
func newSetCmd(a *app, add bool) *cobra.Command {
	var (
		ttl        time.Duration
		tags       []string
		file       string
		staleAfter time.Duration
	)
	name, short := "set", "Store a value, overwriting any existing one"
	if add {
		name, short = "add", "Store a value only if the key is absent"
	}
	cmd := &cobra.Command{
		Use:   name + " <key> <value>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []keyedcache.SetOption
			if cmd.Flags().Changed("ttl") {
				opts = append(opts, keyedcache.WithTTL(ttl))
			}
			if dep := buildDependency(tags, file, staleAfter); dep != nil {
				opts = append(opts, keyedcache.WithDependency(dep))
			}
			write := a.cache.Set
			if add {
				write = a.cache.Add
			}
			if !write(cmd.Context(), args[0], args[1], opts...) {
				return fmt.Errorf("%s %q: not stored", name, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "entry lifetime; 0 never expires (set defaults to KCACHE_DEFAULT_TTL)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "invalidate when any of these tags is bumped")
	cmd.Flags().StringVar(&file, "file", "", "invalidate when this file's modification time changes")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "invalidate after this long regardless of backend TTL")
	return cmd
}

func buildDependency(tags []string, file string, staleAfter time.Duration) dependency.Dependency {
	var deps []dependency.Dependency
	if len(tags) > 0 {
		deps = append(deps, dependency.NewTag(tags...))
	}
	if file != "" {
		deps = append(deps, dependency.NewFile(file))
	}
	if staleAfter > 0 {
		deps = append(deps, dependency.NewDeadlineIn(staleAfter))
	}
	switch len(deps) {
	case 0:
		return nil
	case 1:
		return deps[0]
	}
	return dependency.NewChain(deps...)
}

func newDelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>...",
		Short: "Delete keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed []string
			for _, k := range args {
				if !a.cache.Delete(cmd.Context(), k) {
					failed = append(failed, k)
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("delete failed for %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func newFlushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Remove every entry the backend owns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cache.Flush(cmd.Context()) {
				return fmt.Errorf("flush failed")
			}
			return nil
		},
	}
}

func newInvalidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <tag>...",
		Short: "Bump tag generations, invalidating entries that depend on them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cache.InvalidateTags(cmd.Context(), args...)
		},
	}
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired entries (sqlite backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, ok := a.backend.Provider.(purger)
			if !ok {
				return fmt.Errorf("backend %q expires entries on its own", a.cfg.Backend)
			}
			n, err := p.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d\n", n)
			return nil
		},
	}
}
