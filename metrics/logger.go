package metrics

import (
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"
)

type Logger interface {
	Log(info *MetricsInfo)
}

// StdoutLogger emits one JSON line per request through the standard
// logger.
type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *MetricsInfo) {
	infoStr, err := info.ToJSON()
	if err != nil {
		log.Printf("StdoutLogger: error: %v", err)
		return
	}
	log.Print(infoStr)
}

const defaultQueueSize = 2000
const defaultLogWriters = 2
const defaultMaxLogFileSize = 1024 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger writes request metrics to size-rotated files under
// LogDir. Log never blocks the request path beyond the queue send.
type FileLogger struct {
	MetricsQueue   chan *MetricsInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *MetricsInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
	}

	for i := 0; i < defaultLogWriters; i++ {
		go logger.writeLoop(i)
	}

	return logger
}

func (l *FileLogger) Log(info *MetricsInfo) {
	l.MetricsQueue <- info
}

func (l *FileLogger) writeLoop(idx int) {
	f, err := l.openLogFile(idx)
	if err != nil {
		log.Printf("FileLogger%d: log open error: %v", idx, err)
	}

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			log.Printf("FileLogger%d: info.ToJSON() error: %v", idx, err)
			continue
		}

		f, err = l.maybeRotate(f, idx)
		if err != nil {
			continue
		}

		if _, err := f.WriteString(infoStr); err != nil {
			log.Printf("FileLogger%d: write error: %v", idx, err)
			continue
		}
		f.Sync()
	}
}

func (l *FileLogger) currLogPath(idx int) string {
	return path.Join(l.LogDir, fmt.Sprintf("log%d", idx))
}

func (l *FileLogger) openLogFile(idx int) (*os.File, error) {
	return os.OpenFile(l.currLogPath(idx), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// maybeRotate renames the current log file aside once it exceeds
// MaxLogFileSize, recycling the oldest rotated file when the rotation
// slots are all taken.
func (l *FileLogger) maybeRotate(currFile *os.File, idx int) (*os.File, error) {
	info, err := currFile.Stat()
	if err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
		return currFile, nil
	}

	if info.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	rotatedPath := l.freeRotationSlot(idx)
	if len(rotatedPath) == 0 {
		rotatedPath, err = l.oldestRotatedFile(idx)
		if err != nil {
			log.Printf("FileLogger%d: log rotation error: %v", idx, err)
			return currFile, nil
		}
		if l.Verbose {
			log.Printf("FileLogger%d: maximum number of log files reached, overwriting %s", idx, rotatedPath)
		}
		if err := os.Remove(rotatedPath); err != nil {
			log.Printf("FileLogger%d: log rotation error: %v", idx, err)
			return currFile, nil
		}
	}

	currFile.Close()
	if err := os.Rename(l.currLogPath(idx), rotatedPath); err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
		return currFile, nil
	}

	if l.Verbose {
		log.Printf("FileLogger%d: log file rotated: %v", idx, rotatedPath)
	}

	f, err := l.openLogFile(idx)
	if err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
	}
	return f, err
}

func (l *FileLogger) freeRotationSlot(idx int) string {
	for i := 0; i < l.MaxLogFiles; i++ {
		filePath := path.Join(l.LogDir, fmt.Sprintf("log%d.%d", idx, i))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			return filePath
		}
	}
	return ""
}

func (l *FileLogger) oldestRotatedFile(idx int) (string, error) {
	entries, err := os.ReadDir(l.LogDir)
	if err != nil {
		return "", err
	}

	prefix := fmt.Sprintf("log%d", idx)
	oldestPath := path.Join(l.LogDir, fmt.Sprintf("log%d.%d", idx, 0))
	oldestTime := time.Now()
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.TrimSuffix(name, path.Ext(name)) != prefix {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().Before(oldestTime) {
			oldestPath = path.Join(l.LogDir, name)
			oldestTime = fi.ModTime()
		}
	}
	return oldestPath, nil
}
