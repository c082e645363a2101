package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"parent-portal/internal/admission/draft"
	"parent-portal/internal/admission/formstate"
	"parent-portal/internal/admission/submission"
	"parent-portal/internal/admission/validator"
	"parent-portal/internal/admission/workflow"
	"parent-portal/internal/common/auth"
	appaws "parent-portal/internal/common/aws"
	"parent-portal/internal/common/config"
	apperrors "parent-portal/internal/common/errors"
	apphttp "parent-portal/internal/common/http"
	"parent-portal/internal/common/observability"
	"parent-portal/internal/models"
	"parent-portal/internal/notify"
)

func (a *app) validate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	recordPath := fs.String("record", "", "record JSON file")
	sectionName := fs.String("section", "", "validate one section only")
	if err := fs.Parse(args); err != nil || *recordPath == "" {
		fs.Usage()
		return exitUsage
	}

	record, err := readRecord(*recordPath)
	if err != nil {
		a.log.Error("record unreadable", map[string]interface{}{"path": *recordPath, "error": err})
		return exitFailed
	}

	v := validator.New(validator.WithMaxFileSize(a.cfg.Admission.MaxFileSizeMB))
	var errs models.ValidationErrorMap
	if *sectionName == "" {
		errs, err = v.ValidateAll(record)
	} else {
		section, perr := models.ParseSection(*sectionName)
		if perr != nil {
			fmt.Fprintln(os.Stderr, perr)
			return exitUsage
		}
		errs, err = v.ValidateRecord(section, record)
	}
	if err != nil {
		a.log.Error("validation could not run", map[string]interface{}{"error": err})
		return exitFailed
	}

	if errs.Empty() {
		fmt.Fprintln(a.out, "valid")
		return exitOK
	}
	a.printJSON(errs)
	return exitFailed
}

func (a *app) draft(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return exitUsage
	}

	switch args[0] {
	case "show":
		_, found, err := a.store.Get(ctx, a.cfg.Admission.DraftKey)
		if err != nil {
			a.log.Error("draft read failed", map[string]interface{}{"error": err})
			return exitFailed
		}
		if !found {
			fmt.Fprintln(a.out, "no saved draft")
			return exitOK
		}
		agent := draft.NewAgent(a.store, formstate.New(a.log), draftConfig(a.cfg), a.log)
		defer agent.Close()
		a.printJSON(agent.LoadDraft(ctx))
		return exitOK

	case "clear":
		agent := draft.NewAgent(a.store, formstate.New(a.log), draftConfig(a.cfg), a.log)
		defer agent.Close()
		agent.ClearDraft(ctx)
		fmt.Fprintln(a.out, "draft cleared")
		return exitOK

	case "save":
		fs := flag.NewFlagSet("draft save", flag.ContinueOnError)
		recordPath := fs.String("record", "", "record JSON file")
		if err := fs.Parse(args[1:]); err != nil || *recordPath == "" {
			fs.Usage()
			return exitUsage
		}
		record, err := readRecord(*recordPath)
		if err != nil {
			a.log.Error("record unreadable", map[string]interface{}{"path": *recordPath, "error": err})
			return exitFailed
		}
		s, err := a.session(ctx, nil, nil, nil)
		if err != nil {
			return exitFailed
		}
		defer s.Close()
		s.Load(record)
		return a.flush(ctx, s)

	default:
		fmt.Fprintf(os.Stderr, "unknown draft command %q\n", args[0])
		return exitUsage
	}
}

func (a *app) set(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	path := fs.String("path", "", "dotted field path, e.g. student.surName")
	value := fs.String("value", "", "new value")
	asJSON := fs.Bool("json", false, "decode -value as JSON (numbers, booleans, objects, null)")
	if err := fs.Parse(args); err != nil || *path == "" {
		fs.Usage()
		return exitUsage
	}

	var v any = *value
	if *asJSON {
		if err := json.Unmarshal([]byte(*value), &v); err != nil {
			fmt.Fprintf(os.Stderr, "-value is not JSON: %v\n", err)
			return exitUsage
		}
	}

	s, err := a.session(ctx, nil, nil, nil)
	if err != nil {
		return exitFailed
	}
	defer s.Close()

	if err := s.SetValue(*path, v); err != nil {
		a.log.Error("field not updated", map[string]interface{}{"path": *path, "error": err})
		return exitFailed
	}
	return a.flush(ctx, s)
}

func (a *app) submit(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	recordPath := fs.String("record", "", "submit this record instead of the saved draft")
	username := fs.String("user", os.Getenv("PORTAL_USERNAME"), "parent account email")
	password := fs.String("password", os.Getenv("PORTAL_PASSWORD"), "parent account password")
	token := fs.String("token", os.Getenv("PORTAL_ACCESS_TOKEN"), "bearer token to use instead of signing in")
	filesRoot := fs.String("files-root", ".", "directory relative document URIs resolve against")
	retries := fs.Int("retries", 3, "attempts for retryable failures")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if a.cfg.Submission.Endpoint == "" {
		a.log.Error("submission.endpoint is not configured", nil)
		return exitFailed
	}

	tokens, logout, err := a.tokenSource(ctx, *token, *username, *password)
	if err != nil {
		return a.report(err)
	}
	defer logout()

	client := submission.NewClient(
		a.cfg.Submission.Endpoint,
		apphttp.NewClient(config.GetDuration(a.cfg.Submission.Timeout)),
		tokens,
		submission.LocalFileOpener{Root: *filesRoot},
		a.log,
	)
	sub := newKeyedSubmitter(client, *retries, a.log)

	obs := observability.New(a.cfg.App.Name, a.log)
	defer obs.Shutdown()

	s, err := a.session(ctx, sub, a.notifier(ctx), obs)
	if err != nil {
		return exitFailed
	}
	defer s.Close()

	if *recordPath != "" {
		record, err := readRecord(*recordPath)
		if err != nil {
			a.log.Error("record unreadable", map[string]interface{}{"path": *recordPath, "error": err})
			return exitFailed
		}
		s.Load(record)
	}
	if err := s.JumpTo(models.SectionReview); err != nil {
		return a.report(err)
	}

	receipt, err := s.Submit(ctx)
	if err != nil {
		return a.report(err)
	}
	a.printJSON(receipt)
	return exitOK
}

func (a *app) session(ctx context.Context, sub submission.Submitter, n notify.Notifier, rec observability.Recorder) (*workflow.Session, error) {
	s, err := workflow.Start(ctx, workflow.Deps{
		KV:        a.store,
		Draft:     draftConfig(a.cfg),
		Submitter: sub,
		Validator: validator.New(validator.WithMaxFileSize(a.cfg.Admission.MaxFileSizeMB)),
		Notifier:  n,
		Recorder:  rec,
		Logger:    a.log,
	})
	if err != nil {
		a.log.Error("session start failed", map[string]interface{}{"error": err})
	}
	return s, err
}

func (a *app) flush(ctx context.Context, s *workflow.Session) int {
	if err := s.Flush(ctx); err != nil {
		a.log.Error("draft not saved", map[string]interface{}{"error": err})
		return exitFailed
	}
	fmt.Fprintln(a.out, s.DraftStatus().Label())
	return exitOK
}

// tokenSource prefers an explicit token and otherwise signs in with Keycloak.
func (a *app) tokenSource(ctx context.Context, token, username, password string) (auth.TokenSource, func(), error) {
	noop := func() {}
	if token != "" {
		return auth.StaticToken(token), noop, nil
	}
	if username == "" || password == "" {
		return nil, noop, apperrors.NewSessionExpiredError("no token or credentials supplied")
	}

	kc := a.cfg.Auth.Keycloak
	client := auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret,
		apphttp.NewClient(config.GetDuration(a.cfg.Submission.Timeout)))
	leeway := config.GetDuration(a.cfg.Auth.RefreshLeewaySec * 1000)

	ps, err := auth.NewPasswordSession(ctx, client, username, password, leeway)
	if err != nil {
		return nil, noop, err
	}
	return ps, func() {
		if err := ps.Logout(context.Background()); err != nil {
			a.log.Warn("logout failed", map[string]interface{}{"error": err})
		}
	}, nil
}

// notifier returns nil when no receipt channel is enabled or AWS is not configured.
func (a *app) notifier(ctx context.Context) notify.Notifier {
	n := a.cfg.Notifications
	if !n.Email.Enabled && !n.SMS.Enabled {
		return nil
	}
	awsCfg, err := appaws.LoadConfig(ctx, n.AWS.Region)
	if err != nil {
		a.log.Warn("aws config unavailable, receipts disabled", map[string]interface{}{"error": err})
		return nil
	}
	return notify.NewReceiptNotifier(notify.ConfigFrom(a.cfg), appaws.NewSESClient(awsCfg), appaws.NewSNSClient(awsCfg), a.log)
}

// report prints the user-facing outcome of err and returns the exit code.
func (a *app) report(err error) int {
	out := apperrors.NewErrorHandler(a.log).Handle(err)
	a.printJSON(out)
	return exitFailed
}

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func draftConfig(cfg *config.Config) draft.Config {
	return draft.Config{
		Key:         cfg.Admission.DraftKey,
		Debounce:    config.GetDuration(cfg.Admission.DebounceMs),
		StatusHold:  config.GetDuration(cfg.Admission.StatusHoldMs),
		SaveTimeout: config.GetDuration(cfg.Admission.SaveTimeoutMs),
	}
}

func readRecord(path string) (models.ApplicationRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.ApplicationRecord{}, err
	}
	record := models.NewApplicationRecord()
	if err := json.Unmarshal(raw, &record); err != nil {
		return models.ApplicationRecord{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return record, nil
}
