package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/wikirag/internal/config"
	"github.com/fyrsmithlabs/wikirag/internal/logging"
)

// NewIndex creates the Index named by cfg.Provider:
//   - "chromem" (default): embedded index under cfg.Chromem.Path
//   - "qdrant": remote Qdrant server
//
// Example usage:
//
//	cfg, _ := config.Load("")
//	idx, err := vectorstore.NewIndex(cfg.VectorStore, logger)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
func NewIndex(cfg config.VectorStoreConfig, logger *logging.Logger) (Index, error) {
	switch cfg.Provider {
	case "chromem", "":
		idx, err := NewChromemIndex(ChromemConfig{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		}, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil

	case "qdrant":
		idx, err := NewQdrantIndex(QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			UseTLS: cfg.Qdrant.UseTLS,
			APIKey: cfg.Qdrant.APIKey.Value(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider: %s (supported: chromem, qdrant)",
			ErrInvalidConfig, cfg.Provider)
	}
}
