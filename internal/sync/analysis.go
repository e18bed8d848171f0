package sync

import (
	"context"
	"fmt"
	"io"
	"log"
	stdsync "sync"

	"github.com/Felipecabreramarcon/sync-saves-sub000/models"
	"golang.org/x/sync/errgroup"
)

// Analyzer извлекает метрики из содержимого архива сохранения
// (игровое время, уровень персонажа и тому подобное).
type Analyzer interface {
	Analyze(ctx context.Context, data []byte) (map[string]any, error)
}

// AnalysisReport — итог анализа партии версий.
type AnalysisReport struct {
	// Analyzed — количество версий с успешно прикрепленными метриками.
	Analyzed int
	// Failed — ошибки по версиям, не прервавшие остальных.
	Failed map[string]error
}

// AnalyzeVersions скачивает и анализирует версии параллельно, прикрепляя
// метрики к каждой. Ошибка одной версии не прерывает остальных: частичные
// неудачи собираются в отчет.
func (s *Service) AnalyzeVersions(
	ctx context.Context,
	versions []models.SaveVersion,
	analyzer Analyzer,
) (*AnalysisReport, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("анализатор не задан")
	}

	report := &AnalysisReport{Failed: make(map[string]error)}
	var mu stdsync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, version := range versions {
		version := version
		g.Go(func() error {
			if err := s.analyzeOne(gctx, version, analyzer); err != nil {
				log.Printf("[Analysis] Версия %s: %v", version.ID, err)
				mu.Lock()
				report.Failed[version.ID] = err
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Analyzed++
			mu.Unlock()
			return nil
		})
	}

	// Воркеры ошибок не возвращают, Wait нужен только как барьер.
	_ = g.Wait()

	log.Printf("[Analysis] Проанализировано %d из %d версий", report.Analyzed, len(versions))
	return report, nil
}

// analyzeOne обрабатывает одну версию: скачивание, анализ, запись метрик.
func (s *Service) analyzeOne(ctx context.Context, version models.SaveVersion, analyzer Analyzer) error {
	reader, err := s.blobs.Download(ctx, version.FilePath)
	if err != nil {
		return fmt.Errorf("ошибка скачивания архива: %w", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		return fmt.Errorf("ошибка чтения архива: %w", err)
	}

	metrics, err := analyzer.Analyze(ctx, data)
	if err != nil {
		return fmt.Errorf("ошибка анализа сохранения: %w", err)
	}

	if err = s.versions.AttachAnalysis(ctx, version.ID, Flatten(metrics)); err != nil {
		return fmt.Errorf("ошибка сохранения метрик: %w", err)
	}
	return nil
}

// Flatten разворачивает вложенные структуры метрик в плоский словарь с
// ключами через точку: {"player": {"level": 5}} -> {"player.level": 5}.
// Хранилище принимает только плоские примитивные значения.
func Flatten(metrics map[string]any) map[string]any {
	flat := make(map[string]any, len(metrics))
	flattenInto(flat, "", metrics)
	return flat
}

func flattenInto(dst map[string]any, prefix string, src map[string]any) {
	for key, value := range src {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(dst, name, nested)
			continue
		}
		dst[name] = value
	}
}
