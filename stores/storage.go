package stores

import (
	"os"

	"printloom/core"
	"printloom/stores/filesystem"
	"printloom/stores/memory"
	"printloom/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all record-store types.
type Store interface {
	core.AssetStore
	core.DesignStore
	core.VariationStore
	core.TemplateStore
}

// GetStore picks the record-store backend from STORAGE_TYPE. The in-memory
// store is the default so the server runs without any setup.
func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data" // Default path
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "printloom.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
