// Package runner orchestrates one batch run: load the tabular snapshot,
// build rolling features, fit or reuse role bundles, produce the role
// report, project and score every prop line, and write the output tables
// plus a run summary. A run either completes or fails fast on missing
// required inputs; per-entity failures are skips, never aborts.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/props-engine/internal/cache"
	"github.com/stitts-dev/props-engine/internal/config"
	"github.com/stitts-dev/props-engine/internal/features"
	"github.com/stitts-dev/props-engine/internal/props"
	"github.com/stitts-dev/props-engine/internal/refdata"
	"github.com/stitts-dev/props-engine/internal/roles"
	"github.com/stitts-dev/props-engine/internal/suggest"
	"github.com/stitts-dev/props-engine/internal/tabular"
	"github.com/stitts-dev/props-engine/pkg/logger"
)

// Output is everything one run produced, kept for the serving layer.
type Output struct {
	Summary     Summary              `json:"summary"`
	Report      *roles.Report        `json:"report"`
	Projections []props.Result       `json:"projections"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

// probsSnapshot is the cached offense probability matrix used for optional
// EMA smoothing across runs.
type probsSnapshot struct {
	Players []string    `json:"players"`
	Off     [][]float64 `json:"off"`
}

// Runner executes batch runs over a data directory snapshot.
type Runner struct {
	cfg   *config.Config
	cache *cache.Cache
	log   *logrus.Entry

	mu     sync.RWMutex
	latest *Output
}

// New creates a runner.
func New(cfg *config.Config, c *cache.Cache, log *logrus.Entry) *Runner {
	if log == nil {
		log = logger.WithService("props-engine")
	}
	return &Runner{cfg: cfg, cache: c, log: log}
}

// Latest returns the most recent completed run output, nil before any run.
func (r *Runner) Latest() *Output {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

func (r *Runner) table(name string) (*tabular.Table, error) {
	return tabular.ReadCSV(filepath.Join(r.cfg.DataDir, name+".csv"), name)
}

// optionalTable returns nil (not an error) when the file is absent or
// unreadable; missing optional inputs degrade, never abort.
func (r *Runner) optionalTable(name string) *tabular.Table {
	t, err := r.table(name)
	if err != nil {
		r.log.WithField("table", name).Debug("Optional table not loaded")
		return nil
	}
	return t
}

// Run executes one full batch run.
func (r *Runner) Run(ctx context.Context) (*Output, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := logger.WithRun(runID)
	log.WithField("data_dir", r.cfg.DataDir).Info("Starting run")

	summary := Summary{RunID: runID, StartedAt: started}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	// Required inputs: fail fast with the table/column named.
	logTable, err := r.table("player_game_log")
	if err != nil {
		return nil, err
	}
	oppTable, err := r.table("opponent_per100_last6")
	if err != nil {
		return nil, err
	}
	paceTable, err := r.table("pace_last6")
	if err != nil {
		return nil, err
	}

	report, fitted, err := r.roleReport(ctx, log, logTable, &summary)
	if err != nil {
		return nil, err
	}
	summary.RolesFitted = fitted
	summary.PlayersReported = len(report.Players)

	refs, err := r.referenceSet(oppTable, paceTable)
	if err != nil {
		return nil, err
	}

	out := &Output{Report: report}

	linesTable := r.optionalTable("lines")
	if linesTable == nil {
		summary.Notes = append(summary.Notes, "no lines provided; projections and suggestions skipped")
	} else {
		lines, err := props.ParseLines(linesTable)
		if err != nil {
			return nil, err
		}
		lines = r.filterTeams(lines)
		summary.LinesTotal = len(lines)

		engine := props.NewEngine(refs, log.WithField("stage", "projection"))
		out.Projections = engine.ProjectBatch(lines)
		for _, res := range out.Projections {
			if res.Projection != nil {
				summary.LinesProjected++
			} else {
				summary.LinesSkipped++
				summary.Skipped = append(summary.Skipped, SkippedItem{
					Player: res.Line.Player, Prop: res.Line.Prop, Reason: res.SkipReason,
				})
			}
		}

		sugg := suggest.NewEngine(refs, suggest.Thresholds{
			PaceFast: r.cfg.PaceFastThresh,
			PaceSlow: r.cfg.PaceSlowThresh,
		})
		out.Suggestions = sugg.ScoreBatch(lines)
		summary.SuggestionsMade = len(out.Suggestions)
		for _, s := range out.Suggestions {
			if s.Suggestion == "PASS" {
				summary.SuggestionPasses++
			}
		}
	}

	if err := r.writeOutputs(out); err != nil {
		return nil, err
	}

	summary.FinishedAt = time.Now()
	summary.DurationMS = summary.FinishedAt.Sub(started).Milliseconds()
	out.Summary = summary
	if err := summary.WriteText(r.cfg.OutputDir); err != nil {
		return nil, err
	}

	if err := r.cache.SetJSON(ctx, "latest_run", out); err != nil {
		log.WithError(err).Warn("Failed to cache run output")
	}

	r.mu.Lock()
	r.latest = out
	r.mu.Unlock()

	log.WithFields(logrus.Fields{
		"players":     summary.PlayersReported,
		"projected":   summary.LinesProjected,
		"skipped":     summary.LinesSkipped,
		"duration_ms": summary.DurationMS,
	}).Info("Run complete")
	return out, nil
}

// roleReport builds rolling features, fits or loads the offense/defense
// bundles, and produces the merged role report.
func (r *Runner) roleReport(ctx context.Context, log *logrus.Entry, logTable *tabular.Table, summary *Summary) (*roles.Report, bool, error) {
	gameLogs, err := features.ParseGameLog(logTable)
	if err != nil {
		return nil, false, err
	}
	short, long := features.BuildRolling(gameLogs, r.cfg.ShortWindow, r.cfg.LongWindow)
	if len(short) == 0 {
		return nil, false, fmt.Errorf("player_game_log has too little history for any %d-game window", r.cfg.ShortWindow)
	}

	offPath := filepath.Join(r.cfg.ModelDir, "offense.json")
	defPath := filepath.Join(r.cfg.ModelDir, "defense.json")

	fitted := false
	off, errOff := roles.LoadBundle(offPath)
	def, errDef := roles.LoadBundle(defPath)
	if errOff != nil || errDef != nil {
		if len(long) == 0 {
			return nil, false, fmt.Errorf("no persisted role bundles and too little history for the %d-game training window", r.cfg.LongWindow)
		}
		log.WithField("players", len(long)).Info("Fitting role bundles")
		off, err = roles.Fit(long, roles.OffenseFeatures, r.cfg.OffenseComponents, r.cfg.RandomSeed)
		if err != nil {
			return nil, false, err
		}
		def, err = roles.Fit(long, roles.DefenseFeatures, r.cfg.DefenseComponents, r.cfg.RandomSeed)
		if err != nil {
			return nil, false, err
		}
		if err := off.Save(offPath); err != nil {
			return nil, false, err
		}
		if err := def.Save(defPath); err != nil {
			return nil, false, err
		}
		fitted = true
	}

	offProbs, offLabels := off.Predict(short)
	defProbs, defLabels := def.Predict(short)

	if r.cfg.SmoothProbs {
		offProbs = r.smoothOffense(ctx, short, offProbs, summary)
	}

	_, offNames, _ := roles.Label(short, off.Features, off.Model.K, offLabels, roles.NameOffense)
	_, defNames, _ := roles.Label(short, def.Features, def.Model.K, defLabels, roles.NameDefense)
	return roles.MakeReport(short, offProbs, offNames, defProbs, defNames), fitted, nil
}

// smoothOffense blends this run's offense probabilities with the cached
// previous run when the player set is unchanged.
func (r *Runner) smoothOffense(ctx context.Context, rows []features.Row, curr [][]float64, summary *Summary) [][]float64 {
	players := make([]string, len(rows))
	for i, row := range rows {
		players[i] = row.Player
	}
	var prev probsSnapshot
	ok, err := r.cache.GetJSON(ctx, "offense_probs", &prev)
	if err == nil && ok && samePlayers(prev.Players, players) {
		curr = roles.EMAProbs(prev.Off, curr, r.cfg.SmoothingAlpha)
	} else if r.cache.Enabled() {
		summary.Notes = append(summary.Notes, "probability smoothing skipped (no comparable previous run)")
	}
	if err := r.cache.SetJSON(ctx, "offense_probs", probsSnapshot{Players: players, Off: curr}); err != nil {
		r.log.WithError(err).Warn("Failed to cache offense probabilities")
	}
	return curr
}

func samePlayers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// referenceSet loads required and optional reference tables into one
// immutable set.
func (r *Runner) referenceSet(oppTable, paceTable *tabular.Table) (*refdata.Set, error) {
	opp, err := refdata.NewOpponentStats(oppTable)
	if err != nil {
		return nil, err
	}
	pace, err := refdata.NewPaceTable(paceTable)
	if err != nil {
		return nil, err
	}
	set := &refdata.Set{
		Opponent:   opp,
		Pace:       pace,
		Baselines:  refdata.NewBaselines(r.optionalTable("players_baseline")),
		OnOff:      refdata.NewOnOff(r.optionalTable("on_off")),
		Rest:       refdata.NewRestTable(r.optionalTable("status_rest")),
		Archetypes: refdata.NewArchetypes(r.optionalTable("archetypes")),
		PosDefense: refdata.NewPositionalDefense(r.optionalTable("positional_defense")),
	}
	if ffTable := r.optionalTable("four_factors_last6"); ffTable != nil {
		ff, err := refdata.NewFourFactors(ffTable)
		if err != nil {
			r.log.WithError(err).Warn("Ignoring malformed four_factors_last6")
		} else {
			set.FourFactors = ff
		}
	}
	return set, nil
}

// filterTeams applies the configured include/exclude team filters.
func (r *Runner) filterTeams(lines []props.Line) []props.Line {
	if len(r.cfg.TeamsInclude) == 0 && len(r.cfg.TeamsExclude) == 0 {
		return lines
	}
	include := toSet(r.cfg.TeamsInclude)
	exclude := toSet(r.cfg.TeamsExclude)
	out := lines[:0]
	for _, l := range lines {
		if len(include) > 0 && !include[l.Team] {
			continue
		}
		if exclude[l.Team] {
			continue
		}
		out = append(out, l)
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			set[trimmed] = true
		}
	}
	return set
}

func (r *Runner) writeOutputs(out *Output) error {
	if err := out.Report.ToTable().WriteCSV(filepath.Join(r.cfg.OutputDir, "player_roles_today.csv")); err != nil {
		return err
	}
	if out.Projections != nil {
		if err := props.ProjectionsTable(out.Projections).WriteCSV(filepath.Join(r.cfg.OutputDir, "player_prop_projections.csv")); err != nil {
			return err
		}
	}
	if out.Suggestions != nil {
		if err := suggest.Table(out.Suggestions).WriteCSV(filepath.Join(r.cfg.OutputDir, "prop_suggestions.csv")); err != nil {
			return err
		}
	}
	return nil
}

// Schedule registers the run on the given cron according to the configured
// spec. No spec means no scheduled runs.
func (r *Runner) Schedule(c *cron.Cron) error {
	if r.cfg.CronSpec == "" {
		return nil
	}
	_, err := c.AddFunc(r.cfg.CronSpec, func() {
		if _, err := r.Run(context.Background()); err != nil {
			r.log.WithError(err).Error("Scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("registering cron schedule %q: %w", r.cfg.CronSpec, err)
	}
	r.log.WithField("cron", r.cfg.CronSpec).Info("Scheduled recurring runs")
	return nil
}
