package extractor

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	goeval "github.com/edisonguo/govaluate"
)

// ParsePatternExpression compiles the file selection expression of a
// crawl. Variables are path and type ("f" or "d"); an empty pattern
// matches everything.
func ParsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"path": struct{}{}, "type": struct{}{}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, validVariables)
			}
		}
	}
	return expr, nil
}

const DefaultMaxCrawlErrors = 1000

// GranuleCrawler walks a granule store concurrently using raw dirent
// reads and emits the file paths matching the pattern expression.
// Sidecar documents are never emitted, their containers are.
type GranuleCrawler struct {
	Outputs       chan string
	Error         chan error
	wg            sync.WaitGroup
	concLimit     chan struct{}
	pattern       *goeval.EvaluableExpression
	followSymlink bool
}

type DirEntInfo struct {
	Name string
	Mode uint8
}

func NewGranuleCrawler(conc int, pattern *goeval.EvaluableExpression, followSymlink bool) *GranuleCrawler {
	return &GranuleCrawler{
		Outputs:       make(chan string, 4096),
		Error:         make(chan error, 100),
		wg:            sync.WaitGroup{},
		concLimit:     make(chan struct{}, conc),
		pattern:       pattern,
		followSymlink: followSymlink,
	}
}

// Crawl walks the tree under rootPath, closes Outputs when the walk
// is complete and returns the accumulated walk errors.
func (gc *GranuleCrawler) Crawl(rootPath string) error {
	gc.wg.Add(1)
	gc.concLimit <- struct{}{}
	gc.crawlDir(rootPath, false)
	gc.wg.Wait()

	close(gc.Outputs)

	close(gc.Error)
	var errors []string
	errCount := 0
	for err := range gc.Error {
		errors = append(errors, err.Error())
		errCount++
		if errCount >= DefaultMaxCrawlErrors {
			errors = append(errors, " ... too many errors")
			break
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf(strings.Join(errors, "\n"))
	}
	return nil
}

func (gc *GranuleCrawler) crawlDir(currPath string, serialised bool) {
	defer gc.wg.Done()
	if !serialised {
		defer func() { <-gc.concLimit }()
	}
	files, err := readDir(currPath)
	if err != nil {
		select {
		case gc.Error <- err:
		default:
		}
		return
	}

	for _, fi := range files {
		filePath := path.Join(currPath, fi.Name)
		fileMode := fi.Mode

		if fileMode == syscall.DT_LNK {
			if !gc.followSymlink {
				continue
			}
			fStat, err := os.Stat(filePath)
			if err != nil {
				select {
				case gc.Error <- err:
				default:
				}
				continue
			}

			fMode := fStat.Mode()
			if fMode.IsDir() {
				fileMode = syscall.DT_DIR
			} else if fMode.IsRegular() {
				fileMode = syscall.DT_REG
			}
		}

		validFileMode := fileMode == syscall.DT_DIR || fileMode == syscall.DT_REG
		if !validFileMode {
			continue
		}

		if isSidecar(filePath) {
			continue
		}

		if gc.pattern != nil {
			result, err := gc.evaluatePatternExpression(filePath, fileMode)
			if err != nil {
				select {
				case gc.Error <- err:
				default:
				}
				continue
			}

			if !result {
				continue
			}
		}

		if fileMode == syscall.DT_DIR {
			gc.wg.Add(1)
			select {
			case gc.concLimit <- struct{}{}:
				go func(p string) {
					gc.crawlDir(p, false)
				}(filePath)
			default:
				gc.crawlDir(filePath, true)
			}
			continue
		}

		gc.Outputs <- filePath
	}
}

func isSidecar(filePath string) bool {
	ext := filepath.Ext(filePath)
	return ext == ".yaml" || ext == ".yml"
}

func readDir(currDir string) ([]DirEntInfo, error) {
	parentDir := filepath.Dir(currDir)

	dhParent, err := os.Open(parentDir)
	if err != nil {
		return nil, fmt.Errorf("Could not open dir: %s", err.Error())
	}
	defer dhParent.Close()
	dirFd := int(dhParent.Fd())

	file := filepath.Base(currDir)

	dh, err := syscall.Openat(dirFd, file, syscall.O_RDONLY, 0777)
	if err != nil {
		return nil, fmt.Errorf("Could not open %s: %s", currDir, err.Error())
	}
	defer syscall.Close(dh)

	origBuf := make([]byte, 4096)
	var entries []DirEntInfo
	for {
		n, errno := syscall.ReadDirent(dh, origBuf)
		if errno != nil {
			return nil, fmt.Errorf("Could not read dirent: %v", errno)
		}
		if n <= 0 {
			break
		}

		buf := origBuf[0:n]
		for len(buf) > 0 {
			dirent := (*syscall.Dirent)(unsafe.Pointer(&buf[0]))
			buf = buf[dirent.Reclen:]
			if dirent.Ino == 0 {
				continue
			}
			ii := 0
			for ; ii < len(dirent.Name); ii++ {
				if dirent.Name[ii] == 0 {
					break
				}
			}
			bytes := (*[256]byte)(unsafe.Pointer(&dirent.Name[0]))
			name := string(bytes[:][:ii])
			if name == "." || name == ".." {
				continue
			}

			if dirent.Type == syscall.DT_UNKNOWN {
				st, err := os.Lstat(path.Join(currDir, name))
				if err != nil {
					return nil, err
				}
				mode := st.Mode()
				if mode.IsDir() {
					dirent.Type = syscall.DT_DIR
				} else if mode.IsRegular() {
					dirent.Type = syscall.DT_REG
				} else if mode&os.ModeSymlink == os.ModeSymlink {
					dirent.Type = syscall.DT_LNK
				}
			}

			entries = append(entries, DirEntInfo{Name: name, Mode: dirent.Type})
		}
	}
	return entries, nil
}

func (gc *GranuleCrawler) evaluatePatternExpression(filePath string, fileMode uint8) (bool, error) {
	var fileType string
	if fileMode == syscall.DT_DIR {
		fileType = "d"
	} else if fileMode == syscall.DT_REG {
		fileType = "f"
	}

	parameters := map[string]interface{}{"type": fileType, "path": filePath}
	result, err := gc.pattern.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("pattern expression: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern expression: result '%v' is not boolean", result)
	}
	return val, nil
}
