package main

import (
	"context"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/rs/zerolog/log"

	"tenderestimate/collections"
	"tenderestimate/commands"
	"tenderestimate/config"
	"tenderestimate/handlers"
	"tenderestimate/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config: failed to load")
	}
	cfg.SetupLogger()

	app := pocketbase.New()
	policy := cfg.MarkupPolicy()

	store := services.NewRecordStore(app)
	reconciler := services.NewReconciler(store, cfg.ReconcilerConfig())
	est := services.NewEstimator(store, reconciler, policy)

	app.RootCmd.AddCommand(commands.NewRecalcCommand(app, policy))

	// Create collections, backfill legacy rows and seed demo data on startup
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		collections.Setup(app)
		if err := collections.MigrateItemDefaults(app); err != nil {
			log.Warn().Err(err).Msg("startup: item defaults migration failed")
		}
		if cfg.SeedDemo {
			tenderID, err := collections.Seed(app)
			if err != nil {
				log.Warn().Err(err).Msg("startup: seed data failed")
			} else if tenderID != "" {
				if _, err := est.Recalc(context.Background(), tenderID); err != nil {
					log.Warn().Err(err).Str("tender_id", tenderID).Msg("startup: demo recalc failed")
				}
			}
		}
		reconciler.Start(context.Background())
		return se.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		reconciler.Stop()
		return e.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		se.Router.BindFunc(handlers.RequestLogMiddleware())

		// ── Tenders ──────────────────────────────────────────────
		se.Router.GET("/tenders/{id}", handlers.HandleTenderSummary(est))
		se.Router.POST("/tenders/{id}/rates", handlers.HandleTenderRates(est))
		se.Router.POST("/tenders/{id}/recalc", handlers.HandleTenderRecalc(est))
		se.Router.GET("/tenders/{id}/export/excel", handlers.HandleTenderExportExcel(est))
		se.Router.GET("/tenders/{id}/export/pdf", handlers.HandleTenderExportPDF(est))

		// ── Positions ────────────────────────────────────────────
		se.Router.GET("/positions/{positionId}/summary", handlers.HandlePositionSummary(est))
		se.Router.POST("/positions/{positionId}/items", handlers.HandleItemCreate(est))
		se.Router.POST("/positions/{positionId}/import", handlers.HandleItemImport(est))
		se.Router.POST("/imports/errors", handlers.HandleImportErrorReport())

		// ── Items and links ──────────────────────────────────────
		se.Router.PATCH("/items/{itemId}", handlers.HandleItemPatch(est))
		se.Router.POST("/items/{itemId}/unlink", handlers.HandleItemUnlink(est))
		se.Router.POST("/items/{itemId}/relink", handlers.HandleRelink(est))
		se.Router.POST("/items/{itemId}/reclassify", handlers.HandleItemReclassify(est))
		se.Router.PATCH("/links/{linkId}", handlers.HandleLinkCoefficients(est))

		return se.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal().Err(err).Msg("app: exited with error")
	}
}
