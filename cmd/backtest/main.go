// Command backtest replays historical transactions through the
// investigation cascade without any side effects: no sink publish, no
// audit events, no pattern recording. It is grounded on the teacher's
// internal/scoring/backtest.go and BacktestWorker, generalized from a
// single risk-score call to the full L1-L5 Orchestrator.Investigate
// cascade.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/cascade"
	"github.com/enterprise/fraud-investigator/internal/features"
	"github.com/enterprise/fraud-investigator/internal/historystore"
	"github.com/enterprise/fraud-investigator/internal/models"
)

// noopRecorder discards every processed case; a backtest run must not
// feed pattern discovery or the audit trail.
type noopRecorder struct{}

func (noopRecorder) Record(models.ProcessedCase) {}

// summary aggregates per-transaction backtest results.
type summary struct {
	total           int
	processed       int
	failed          int
	decisions       map[models.Decision]int
	processingTimes []time.Duration
	sumConfidence   float64
}

func newSummary() *summary {
	return &summary{decisions: make(map[models.Decision]int)}
}

func (s *summary) record(pc models.ProcessedCase, err error) {
	s.total++
	if err != nil {
		s.failed++
		return
	}
	s.processed++
	s.decisions[pc.Decision]++
	s.sumConfidence += pc.Confidence
	s.processingTimes = append(s.processingTimes, time.Duration(pc.ProcessingTimeMs)*time.Millisecond)
}

func (s *summary) percentile(p float64) time.Duration {
	if len(s.processingTimes) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(s.processingTimes))
	copy(sorted, s.processingTimes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func main() {
	inputPath := flag.String("input", "", "path to a JSON-lines file of transactions to replay (required)")
	limit := flag.Int("limit", 0, "stop after this many transactions (0 = no limit)")
	verbose := flag.Bool("verbose", false, "print each case's verdict as it is produced")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -input transactions.jsonl [-limit N] [-verbose]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := configs.Load()
	setupLogging(cfg.Server.Environment)

	ctx := context.Background()

	history, err := historystore.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to history store")
	}
	defer history.Close()

	extractor := features.New(history)
	ensemble := cascade.NewGradientEnsemble()
	graph := cascade.NewGraphAnalyzer(history)
	anomaly := cascade.NewAnomalyDetector(nil)
	reasoner := cascade.NewReasoner(cfg.LLM)

	orchestrator := cascade.NewOrchestrator(extractor, ensemble, graph, anomaly, reasoner, noopRecorder{}, cfg.Gray, cfg.Worker.SoftBudget)

	f, err := os.Open(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *inputPath).Msg("failed to open input file")
	}
	defer f.Close()

	sum := newSummary()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if *limit > 0 && sum.total >= *limit {
			break
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var tx models.Transaction
		if err := json.Unmarshal(line, &tx); err != nil {
			log.Warn().Err(err).Int("line", sum.total+1).Msg("skipping malformed transaction line")
			sum.record(models.ProcessedCase{}, err)
			continue
		}

		_, pc := orchestrator.Investigate(ctx, &tx)
		sum.record(pc, nil)

		if *verbose {
			fmt.Printf("case=%s user=%s decision=%s confidence=%.3f combined=%.3f layers=%v\n",
				pc.CaseID, pc.UserID, pc.Decision, pc.Confidence, pc.CombinedScore, pc.LayersExecuted)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("failed reading input file")
	}

	printReport(sum)
}

func printReport(s *summary) {
	fmt.Println()
	fmt.Println("backtest report")
	fmt.Println("---------------")
	fmt.Printf("total transactions:   %d\n", s.total)
	fmt.Printf("processed:            %d\n", s.processed)
	fmt.Printf("failed to parse:      %d\n", s.failed)
	if s.processed > 0 {
		fmt.Printf("average confidence:   %.3f\n", s.sumConfidence/float64(s.processed))
	}
	fmt.Println()
	fmt.Println("decision distribution:")
	for _, d := range []models.Decision{models.DecisionAutoApproved, models.DecisionAutoBlocked, models.DecisionHumanReview} {
		fmt.Printf("  %-14s %d\n", d, s.decisions[d])
	}
	fmt.Println()
	fmt.Println("processing time:")
	fmt.Printf("  p50: %s\n", s.percentile(0.50))
	fmt.Printf("  p95: %s\n", s.percentile(0.95))
	fmt.Printf("  p99: %s\n", s.percentile(0.99))
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
