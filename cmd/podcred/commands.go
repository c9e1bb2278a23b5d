package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"podcred/internal/issuance"
	"podcred/internal/router"
	"podcred/internal/status"
	"podcred/internal/verify"
)

const shutdownTimeout = 10 * time.Second

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd(c *cli.Context) error {
	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Auth.JWTSecret == "" {
		a.logger.Warn("AUTH_JWT_SECRET is empty, login and protected routes will reject every request")
	}

	sweeper, err := a.tracker.StartSweeper(a.cfg.Issuance.SweepSchedule)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           router.RegisterRouter(a.api(), a.cfg, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("address", srv.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP shutdown", zap.Error(err))
	}
	<-sweeper.Stop().Done()
	a.tracker.Wait()
	return nil
}

func statusCmd(c *cli.Context) error {
	addr, err := issuance.ParseAddress(c.Args().First())
	if err != nil {
		return err
	}

	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.close()

	var st status.Status
	if c.Bool(waitFlag.Name) {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()
		st, err = a.checker.Watch(ctx, addr, a.cfg.Issuance.StatusInterval)
		if errors.Is(err, context.Canceled) && st.State != "" {
			err = nil
		}
	} else {
		st, err = a.checker.Check(c.Context, addr)
	}
	if err != nil {
		return err
	}
	return printJSON(st)
}

func verifyCmd(c *cli.Context) error {
	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.close()

	var res verify.Result
	if tokenID := c.String(tokenFlag.Name); tokenID != "" {
		res, err = a.verifier.VerifyToken(c.Context, tokenID)
	} else {
		res, err = a.verifier.Verify(c.Context, c.Args().First())
	}
	if err != nil {
		return err
	}
	return printJSON(res)
}

// awaitAndPrint records sub, blocks until its receipt lands and prints it.
func (a *app) awaitAndPrint(ctx context.Context, sub issuance.Submission, entries []issuance.Entry) error {
	if !sub.Cancelled {
		if err := a.tracker.Record(ctx, sub); err != nil {
			a.logger.Warn("Failed to record transaction", zap.Error(err))
		}
		a.logger.Info("Submitted, waiting for confirmation", zap.String("tx_hash", sub.TxHash.Hex()), zap.Int("attempts", sub.Attempts))
		if _, err := a.tracker.Await(ctx, sub); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return printJSON(sub)
	}
	return printJSON(map[string]any{"submission": sub, "entries": entries})
}

func issueCmd(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowSubcommandHelp(c)
	}

	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.close()

	sub, err := a.issuer.Issue(c.Context, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	return a.awaitAndPrint(c.Context, sub, nil)
}

func batchCmd(c *cli.Context) error {
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := issuance.ParseBatchCSV(f, time.Now)
	if err != nil {
		return err
	}

	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.close()

	students, hashes := issuance.Split(entries)
	sub, err := a.issuer.IssueBatch(c.Context, students, hashes)
	if err != nil {
		return err
	}
	return a.awaitAndPrint(c.Context, sub, entries)
}

func universitiesCmd(c *cli.Context) error {
	a, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.close()

	addrs, err := a.queries.AllUniversities(c.Context)
	if err != nil {
		return err
	}
	statuses, err := a.checker.CheckAll(c.Context, addrs, 8)
	if err != nil {
		return err
	}

	if c.Bool(pendingFlag.Name) {
		statuses = status.FilterPending(statuses)
	}
	if q := c.String(searchFlag.Name); q != "" {
		statuses = status.SearchByName(statuses, q)
	}
	return printJSON(statuses)
}
