package processor

import (
	"os"
	"path/filepath"
	"regexp"
)

// FileCrawler walks a granule store and emits the container files
// matching the pattern. Sidecar documents are skipped, their
// containers carry them.
type FileCrawler struct {
	Out   chan string
	Error chan error
	root  string
	re    *regexp.Regexp
}

func NewFileCrawler(rootPath string, contains *regexp.Regexp, errChan chan error) *FileCrawler {
	return &FileCrawler{
		Out:   make(chan string, 100),
		Error: errChan,
		root:  rootPath,
		re:    contains,
	}
}

func (fc *FileCrawler) Run() {
	defer close(fc.Out)

	fInfo, err := os.Stat(fc.root)
	if err != nil {
		fc.Error <- err
		return
	}

	if !fInfo.IsDir() {
		fc.Out <- fc.root
		return
	}

	filepath.Walk(fc.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fc.Error <- err
			return nil
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".yaml" || ext == ".yml" {
			return nil
		}
		if fc.re.MatchString(path) {
			fc.Out <- path
		}
		return nil
	})
}
