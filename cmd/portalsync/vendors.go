package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/consultwithcase/portalsync/internal/adp"
	"github.com/consultwithcase/portalsync/internal/apperr"
	"github.com/consultwithcase/portalsync/internal/config"
	"github.com/consultwithcase/portalsync/internal/secrets"
	"github.com/consultwithcase/portalsync/internal/store"
	"github.com/consultwithcase/portalsync/internal/timesheet"
	"github.com/consultwithcase/portalsync/internal/tsheets"
	"github.com/consultwithcase/portalsync/internal/unanet"
)

const (
	vendorTSheets = "tsheets"
	vendorADP     = "adp"
	vendorUnanet  = "unanet"
	vendorAll     = "all"
)

// app carries what every command shares.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	secrets secrets.Store
	logger  *slog.Logger
}

func newApp() (*app, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	env, err := secrets.NewEnvStore(".env", filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}

	// Values from the config file or its env overrides win over the stores.
	overrides := secrets.Map{cfg.TSheets.AccessTokenSecret: cfg.TSheets.AccessToken}
	names := adp.SecretNames(cfg.ADP.Account)
	overrides[names[0]] = cfg.ADP.ClientID
	overrides[names[1]] = cfg.ADP.ClientSecret
	if cfg.Unanet.Username != "" && cfg.Unanet.Password != "" {
		overrides[cfg.Unanet.LoginSecret] = fmt.Sprintf(`{"username": %q, "password": %q}`, cfg.Unanet.Username, cfg.Unanet.Password)
	}

	return &app{
		cfg:     cfg,
		loc:     loc,
		secrets: secrets.Chain{overrides, env, secrets.NewKeyringStore("")},
		logger:  logger,
	}, nil
}

func (a *app) tsheetsClient(ctx context.Context) (*tsheets.Client, error) {
	token, err := a.secrets.Get(ctx, a.cfg.TSheets.AccessTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("loading TSheets token: %w", err)
	}
	return tsheets.NewClient(token, tsheets.Options{
		BaseURL:          a.cfg.TSheets.BaseURL,
		CacheTTL:         a.cfg.CacheTTL(),
		NonBillableRoots: a.cfg.Timesheet.NonBillableRootIDs,
		Location:         a.loc,
	}, a.logger.With("vendor", vendorTSheets)), nil
}

func (a *app) adpClient(ctx context.Context) (*adp.Client, error) {
	creds, err := adp.LoadCredentials(ctx, a.secrets, a.cfg.ADP.Account)
	if err != nil {
		return nil, err
	}
	cachePath := a.cfg.ADP.TokenCachePath
	if cachePath == "" {
		if cachePath, err = adp.DefaultTokenPath(a.cfg.ADP.Account); err != nil {
			return nil, err
		}
	}
	return adp.NewClient(creds, adp.Options{
		BaseURL:        a.cfg.ADP.BaseURL,
		TokenURL:       a.cfg.ADP.TokenURL,
		TokenCachePath: cachePath,
		WorkersTTL:     a.cfg.CacheTTL(),
		Location:       a.loc,
	}, a.logger.With("vendor", vendorADP))
}

func (a *app) unanetClient(ctx context.Context) (*unanet.Client, error) {
	login, err := unanet.LoadLogin(ctx, a.secrets)
	if err != nil {
		return nil, err
	}
	baseURL := a.cfg.Unanet.BaseURL
	if baseURL == "" {
		baseURL = unanet.BaseURLForStage(a.cfg.Stage)
	}
	return unanet.NewClient(login, unanet.Options{
		BaseURL:              baseURL,
		BillableProjectTypes: a.cfg.Unanet.BillableProjectTypes,
		PlanableKeys:         a.cfg.Unanet.PlanableKeys,
		Location:             a.loc,
	}, a.logger.With("vendor", vendorUnanet)), nil
}

// fetch runs one vendor's fetch for an employee. Vendor identifiers are
// taken from the employee record when db holds one, and resolved otherwise.
func (a *app) fetch(ctx context.Context, vendor string, db *store.DB, employeeNumber int, req timesheet.Request) (*timesheet.Report, error) {
	var emp *store.Employee
	if db != nil {
		if e, err := db.GetByEmployeeNumber(ctx, employeeNumber); err == nil {
			emp = e
		}
	}

	switch vendor {
	case vendorTSheets:
		c, err := a.tsheetsClient(ctx)
		if err != nil {
			return nil, err
		}
		r, err := c.FetchTimesheets(ctx, employeeNumber, req)
		if err != nil {
			printFailure(err, c.Diagnostics(a.cfg.Stage))
		}
		return r, err

	case vendorADP:
		c, err := a.adpClient(ctx)
		if err != nil {
			return nil, err
		}
		var aoid string
		if emp != nil {
			aoid = emp.ADPAOID
		}
		if aoid == "" {
			if aoid, err = c.ResolveAOID(ctx, employeeNumber); err != nil {
				return nil, err
			}
		}
		r, err := c.FetchTimesheets(ctx, aoid, req)
		if err != nil {
			printFailure(err, c.Diagnostics(a.cfg.Stage))
		}
		return r, err

	case vendorUnanet:
		c, err := a.unanetClient(ctx)
		if err != nil {
			return nil, err
		}
		var key string
		if emp != nil {
			key, err = c.ResolvePersonKey(ctx, *emp, db)
		} else {
			key, err = c.PersonKey(ctx, employeeNumber)
		}
		if err == nil {
			var r *timesheet.Report
			if r, err = c.FetchTimesheets(ctx, key, req); err == nil {
				return r, nil
			}
		}
		err = c.Classify(ctx, err)
		printFailure(err, c.Diagnostics(a.cfg.Stage))
		return nil, err
	}
	return nil, apperr.InvalidInput("fetch", "unknown vendor %q", vendor)
}
