// Command sessionprobe signs in against the configured backend, resolves the
// user's permissions and prints them, then exercises one authorized request
// through the interceptor chain. Useful for verifying a deployment's OAuth2
// client and permission data end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"sort"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/apperrors"
	"github.com/jking1031/ZZIOT2.0-sub002/internal/config"
	"github.com/jking1031/ZZIOT2.0-sub002/permission"
	"github.com/jking1031/ZZIOT2.0-sub002/profile"
	"github.com/jking1031/ZZIOT2.0-sub002/session"
	"github.com/jking1031/ZZIOT2.0-sub002/store/sqlitestore"
	"github.com/jking1031/ZZIOT2.0-sub002/token"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = fmt.Errorf("panic recovered")
		}
	}()

	username := flag.String("username", "", "login username")
	password := flag.String("password", "", "login password")
	configFile := flag.String("config", "", "optional YAML config overlay")
	probeURL := flag.String("probe", "", "optional URL to request through the authorized client")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		return fmt.Errorf("username and password are required")
	}

	displayAppname("session probe")

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	kv, err := sqlitestore.Open(cfg.GetStorePath())
	if err != nil {
		return err
	}
	defer kv.Close() //nolint:errcheck

	tokens, err := token.New(cfg, kv, token.WithLogger(logger))
	if err != nil {
		return err
	}
	transport, err := token.NewTransport(tokens, nil)
	if err != nil {
		return err
	}
	authorized := transport.Client()

	profiles, err := profile.NewClient(cfg, authorized)
	if err != nil {
		return err
	}
	fetcher, err := permission.NewHTTPFetcher(cfg, authorized)
	if err != nil {
		return err
	}
	resolver, err := permission.NewResolver(fetcher, kv,
		permission.WithTTL(cfg.GetPermissionCacheTTL()),
		permission.WithLogger(logger))
	if err != nil {
		return err
	}

	coordinator, err := session.New(session.Deps{
		Tokens:      tokens,
		Profiles:    profiles,
		Permissions: resolver,
		Store:       kv,
	}, session.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	printTenants(cfg)

	if err := login(ctx, coordinator, *username, *password, logger); err != nil {
		if coordinator.State() != session.StateActive {
			return err
		}
		logger.Warn().Err(err).Msg("signed in with degraded permissions")
	}

	printPermissions(coordinator.Snapshot())

	if *probeURL != "" {
		if err := probe(ctx, authorized, *probeURL); err != nil {
			return err
		}
	}

	return coordinator.Logout(ctx)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.NewFromFile(path)
}

// login retries transient failures a couple of times; a probe run should not
// fail on one dropped packet.
func login(ctx context.Context, coordinator *session.Coordinator, username, password string, logger zerolog.Logger) error {
	const attempts = 3

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = coordinator.Login(ctx, username, password)
		if err == nil || !apperrors.IsTransient(err) {
			return err
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("login failed, retrying")
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Second):
		}
	}
	return err
}

// printTenants lists the selectable tenants when the config overlay ships one.
func printTenants(cfg config.Config) {
	lister, ok := cfg.(interface{ Tenants() []config.Tenant })
	if !ok {
		return
	}
	tenants := lister.Tenants()
	if len(tenants) == 0 {
		return
	}
	fmt.Printf("%d configured tenants:\n", len(tenants))
	for _, tenant := range tenants {
		fmt.Printf("  %-8s %s\n", tenant.ID, tenant.Name)
	}
}

func printPermissions(snapshot session.Snapshot) {
	if snapshot.User != nil {
		fmt.Printf("user: %s (%s)\n", snapshot.User.Username, snapshot.User.ID)
		for _, dept := range snapshot.User.Departments {
			fmt.Printf("  department: %s (%s)\n", dept.DepartmentKey, dept.DepartmentID)
		}
	}

	keys := make([]string, 0, len(snapshot.Resolved))
	for key := range snapshot.Resolved {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Printf("%d resolved permissions:\n", len(keys))
	for _, key := range keys {
		grant := snapshot.Resolved[key]
		fmt.Printf("  %-30s %-8s %-24s %s\n", key, grant.Level, grant.RoutePath, grant.ModuleName)
	}
}

func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	fmt.Printf("probe %s -> %s\n", url, resp.Status)
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
