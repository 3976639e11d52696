package stores

import (
	"github.com/sirupsen/logrus"

	"collabdoc-server/config"
	"collabdoc-server/core"
	"collabdoc-server/stores/memory"
	"collabdoc-server/stores/s3"
	"collabdoc-server/stores/sqlite"
)

// Store is the full persistent contract the coordination layer calls:
// document content, durable chat records and the user active flag.
type Store interface {
	core.DocumentStore
	core.ChatStore
	core.UserStore
}

// s3Backed keeps document content in S3 while chat and user state stay in
// the embedded store; S3 has no shape for either.
type s3Backed struct {
	core.DocumentStore
	core.ChatStore
	core.UserStore
}

func GetStore(cfg *config.Config) Store {
	var store Store

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		storageField["bucket"] = cfg.S3Bucket
		mem := memory.NewStore()
		store = &s3Backed{
			DocumentStore: s3.NewDocumentStore(cfg.S3Bucket),
			ChatStore:     mem,
			UserStore:     mem,
		}
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
