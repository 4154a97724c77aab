package clients

import (
	"log/slog"

	"github.com/DYAI2025/sentiment-analyzer-frontend/config"
)

// Platform bundles the three platform-facing clients. The bundle is built
// once at startup and handed to whoever needs it; nothing here is a
// package-level singleton, so tests can construct bundles around fakes.
type Platform struct {
	Rest     *RestClient
	Storage  *StorageClient
	Realtime *RealtimeClient
}

func NewPlatform(cfg config.Config) (*Platform, error) {
	rest := NewRestClient(cfg.PlatformURL, cfg.PlatformKey)

	storage, err := NewStorageClient(cfg.StorageEndpoint, cfg.StorageAccessKey,
		cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseSSL)
	if err != nil {
		return nil, err
	}

	realtime, err := NewRealtimeClient(cfg.PlatformURL, cfg.PlatformKey,
		cfg.HeartbeatInterval, cfg.ReconnectDelay)
	if err != nil {
		return nil, err
	}

	slog.Info("[Platform] Clients initialized",
		slog.String("platform_url", cfg.PlatformURL),
		slog.String("bucket", cfg.StorageBucket))

	return &Platform{
		Rest:     rest,
		Storage:  storage,
		Realtime: realtime,
	}, nil
}
