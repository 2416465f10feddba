// Command bioctl is the operator tool for biometric-auth: key generation,
// offline extraction checks, migrations and account switches.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	engine "github.com/baechuer/biometric-auth/internal/biometric"
	"github.com/baechuer/biometric-auth/internal/config"
	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/infrastructure/db/migrate"
	"github.com/baechuer/biometric-auth/internal/infrastructure/db/postgres"
	"github.com/baechuer/biometric-auth/internal/infrastructure/redis"
)

const usage = `usage: bioctl <command> [flags]

commands:
  keygen                          print a random TEMPLATE_KEY
  extract -modality M FILE        extract features and print quality
  compare -modality M FILE FILE   score two captures against each other
  migrate -dsn URL                apply database migrations
  user-active -dsn URL -user ID -active=BOOL [-redis-addr A]
  redis-keys [-pattern P] [-del]  inspect token families and rate-limit buckets
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "keygen":
		err = keygen(stdout)
	case "extract":
		err = extract(ctx, args[1:], stdout)
	case "compare":
		err = compare(ctx, args[1:], stdout)
	case "migrate":
		err = migrateCmd(ctx, args[1:], stdout)
	case "user-active":
		err = userActive(ctx, args[1:], stdout)
	case "redis-keys":
		err = redisKeys(ctx, args[1:], stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			fmt.Fprintf(stderr, "%s: %s\n", de.Code, de.Message)
		} else {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func keygen(w io.Writer) error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, base64.StdEncoding.EncodeToString(key))
	return err
}

type captureFlags struct {
	fs       *flag.FlagSet
	modality *string
	maxBytes *int
	maxPix   *int
	timeout  *time.Duration
}

func newCaptureFlags(name string) captureFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return captureFlags{
		fs:       fs,
		modality: fs.String("modality", "face", "face or fingerprint"),
		maxBytes: fs.Int("max-bytes", 8<<20, "evidence size limit"),
		maxPix:   fs.Int("max-pixels", engine.DefaultMaxPixels, "decoded area limit"),
		timeout:  fs.Duration("timeout", 5*time.Second, "extraction deadline"),
	}
}

func (c captureFlags) extractFile(ctx context.Context, reg *engine.Registry, path string) (engine.Extraction, error) {
	m, err := domain.ParseModality(*c.modality)
	if err != nil {
		return engine.Extraction{}, err
	}
	capab, err := reg.Lookup(m)
	if err != nil {
		return engine.Extraction{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Extraction{}, err
	}

	ev := domain.Evidence{Data: data}
	format, err := engine.CheckEvidence(ev, engine.Limits{MaxBytes: *c.maxBytes, MaxPixels: *c.maxPix}, capab.Extractor.Formats())
	if err != nil {
		return engine.Extraction{}, err
	}
	ev.Format = format
	return engine.ExtractBounded(ctx, *c.timeout, capab.Extractor, ev)
}

type extractReport struct {
	Modality   string  `json:"modality"`
	Quality    float64 `json:"quality"`
	Frames     int     `json:"frames"`
	Dimensions int     `json:"dimensions"`
}

func extract(ctx context.Context, args []string, w io.Writer) error {
	cf := newCaptureFlags("extract")
	if err := cf.fs.Parse(args); err != nil {
		return err
	}
	if cf.fs.NArg() != 1 {
		return errors.New("extract needs exactly one file")
	}

	ex, err := cf.extractFile(ctx, engine.DefaultRegistry(), cf.fs.Arg(0))
	if err != nil {
		return err
	}
	return writeJSON(w, extractReport{
		Modality:   *cf.modality,
		Quality:    ex.Quality,
		Frames:     ex.Frames,
		Dimensions: len(ex.Embedding),
	})
}

type compareReport struct {
	Modality string  `json:"modality"`
	Score    float64 `json:"score"`
	Matched  bool    `json:"matched"`
}

func compare(ctx context.Context, args []string, w io.Writer) error {
	cf := newCaptureFlags("compare")
	threshold := cf.fs.Float64("threshold", 0.80, "match threshold")
	if err := cf.fs.Parse(args); err != nil {
		return err
	}
	if cf.fs.NArg() != 2 {
		return errors.New("compare needs exactly two files")
	}

	reg := engine.DefaultRegistry()
	a, err := cf.extractFile(ctx, reg, cf.fs.Arg(0))
	if err != nil {
		return err
	}
	b, err := cf.extractFile(ctx, reg, cf.fs.Arg(1))
	if err != nil {
		return err
	}
	m, err := domain.ParseModality(*cf.modality)
	if err != nil {
		return err
	}
	score, err := engine.NewSimilarityScorer(reg).Score(m, a.Embedding, b.Embedding)
	if err != nil {
		return err
	}
	return writeJSON(w, compareReport{Modality: *cf.modality, Score: score, Matched: score >= *threshold})
}

func migrateCmd(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dsn := fs.String("dsn", os.Getenv("DB_ADDR"), "postgres URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := config.NewDB(*dsn, false)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrate.Up(ctx, db); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, "migrations applied")
	return err
}

func userActive(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("user-active", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		dsn       = fs.String("dsn", os.Getenv("DB_ADDR"), "postgres URL")
		userID    = fs.String("user", "", "user id")
		active    = fs.Bool("active", true, "enable or disable the account")
		redisAddr = fs.String("redis-addr", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis holding the token families")
		redisPass = fs.String("redis-pass", os.Getenv("REDIS_PASSWORD"), "redis password")
		redisDB   = fs.Int("redis-db", 0, "redis db")
		revoke    = fs.Bool("revoke", true, "on disable, revoke the user's token families")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("-user is required")
	}

	var families familyRevoker
	if !*active && *revoke {
		rc := redis.New(*redisAddr, *redisPass, *redisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		families = redis.NewTokenFamilyStore(rc)
	}

	db, err := config.NewDB(*dsn, false)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := switchUser(ctx, postgres.NewUserRepo(db), families, *userID, *active); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "user %s active=%v\n", *userID, *active)
	return err
}

type accountSwitch interface {
	SetActive(ctx context.Context, userID string, active bool) error
}

type familyRevoker interface {
	RevokeUser(ctx context.Context, userID string) error
}

// switchUser flips the account flag and, when disabling, ends every token
// family of the user so issued access tokens stop validating at once.
func switchUser(ctx context.Context, users accountSwitch, families familyRevoker, userID string, active bool) error {
	if err := users.SetActive(ctx, userID, active); err != nil {
		return err
	}
	if active || families == nil {
		return nil
	}
	if err := families.RevokeUser(ctx, userID); err != nil {
		return fmt.Errorf("user %s disabled but sessions not revoked: %w", userID, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
