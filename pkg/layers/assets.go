package layers

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/moby/patternmatcher"
	"go.uber.org/zap"

	schema "github.com/turbokube/shipyard/pkg/schema/v1"
)

// FromAssets buffers a local directory into a layer, with ignore patterns
// and caps on file count and total size.
func FromAssets(cfg schema.Assets) (v1.Layer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("assets path must be specified (use . for CWD)")
	}

	prefix := strings.TrimSuffix(cfg.ContainerPath, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("assets containerPath must have a leading slash, got %s", cfg.ContainerPath)
	}

	ignore, err := patternmatcher.New(cfg.Ignore)
	if err != nil {
		return nil, fmt.Errorf("patternmatcher from: %v", cfg.Ignore)
	}

	maxSize := 0
	if cfg.MaxSize != "" {
		maxSize, err = NewSize(cfg.MaxSize)
		if err != nil {
			return nil, err
		}
	}

	bytesTotal := 0
	filemap := make(map[string][]byte)
	modes := make(map[string]int64)

	fileSystem := os.DirFS(cfg.Path)

	err = fs.WalkDir(fileSystem, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsDir() {
			return nil
		}
		skip, err := ignore.MatchesOrParentMatches(path)
		if err != nil {
			return err
		}
		if skip {
			zap.L().Debug("ignored", zap.String("path", path))
			return nil
		}
		if cfg.MaxFiles > 0 && len(filemap) >= cfg.MaxFiles {
			return fmt.Errorf("number of files exceeds max from assets config: %d", cfg.MaxFiles)
		}
		file, err := fs.ReadFile(fileSystem, path)
		if err != nil {
			return err
		}
		bytesTotal = bytesTotal + len(file)
		if maxSize > 0 && bytesTotal > maxSize {
			return fmt.Errorf("accumulated file size %d exceeds max size from assets config: %d", bytesTotal, maxSize)
		}
		topath := path
		if prefix != "" {
			topath = fmt.Sprintf("%s/%s", strings.TrimPrefix(prefix, "/"), path)
		}
		filemap[topath] = file
		modes[topath] = defaultFileMode
		zap.L().Debug("added",
			zap.String("from", path),
			zap.String("to", topath),
			zap.Int("size", len(file)),
		)

		return nil
	})

	if err != nil {
		zap.L().Error("assets buffer failed", zap.Int("files", len(filemap)), zap.Int("bytes", bytesTotal), zap.Error(err))
		return nil, err
	}
	zap.L().Info("assets buffer created", zap.Int("files", len(filemap)), zap.Int("bytes", bytesTotal))

	if len(filemap) == 0 {
		return nil, fmt.Errorf("assets dir resulted in empty layer: %s", cfg.Path)
	}

	return Layer(filemap, modes, Attributes{})
}
