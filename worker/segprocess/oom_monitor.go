package segprocess

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultExecMatch matches the worker child binary name as it
// appears in /proc/<pid>/status.
const DefaultExecMatch = `^seg-process`

type procInfo struct {
	KBytes  map[string]int64
	Strings map[string]string
}

func parseProcInfo(procPath string, lookupKeys []string) (*procInfo, error) {
	data, err := ioutil.ReadFile(procPath)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool)
	for _, key := range lookupKeys {
		wanted[key] = false
	}

	info := &procInfo{KBytes: make(map[string]int64), Strings: make(map[string]string)}

	numFound := 0
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Split(line, ":")
		if len(fields) != 2 {
			continue
		}

		key := strings.TrimSpace(fields[0])
		if _, found := wanted[key]; !found {
			continue
		}
		wanted[key] = true
		numFound++

		val := strings.TrimSpace(fields[1])
		if strings.HasSuffix(val, "kB") {
			valInt, err := strconv.ParseInt(strings.TrimSpace(strings.TrimSuffix(val, "kB")), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to parse %s", procPath, line)
			}
			info.KBytes[key] = valInt
		} else {
			info.Strings[key] = val
		}

		if numFound == len(wanted) {
			return info, nil
		}
	}

	for k, found := range wanted {
		if !found {
			return nil, fmt.Errorf("%s: %s not found", procPath, k)
		}
	}
	return info, nil
}

type memoryInfo struct {
	TotalMemory     int64
	AvailableMemory int64
}

func getMemoryInfo() (*memoryInfo, error) {
	info, err := parseProcInfo("/proc/meminfo", []string{"MemTotal", "MemAvailable"})
	if err != nil {
		return nil, err
	}
	return &memoryInfo{TotalMemory: info.KBytes["MemTotal"], AvailableMemory: info.KBytes["MemAvailable"]}, nil
}

type processStatus struct {
	Name  string
	VmRSS int64
	Pid   int
}

func findProcessStatus(pattern *regexp.Regexp) ([]*processStatus, error) {
	var procStatus []*processStatus
	files, err := ioutil.ReadDir("/proc")
	if err != nil {
		return procStatus, nil
	}

	currentPid := os.Getpid()
	for _, file := range files {
		if !file.IsDir() {
			continue
		}

		pid64, err := strconv.ParseInt(file.Name(), 10, 64)
		if err != nil {
			continue
		}
		pid := int(pid64)
		if pid <= 1 || pid == currentPid {
			continue
		}

		info, err := parseProcInfo(fmt.Sprintf("/proc/%d/status", pid), []string{"Name", "VmRSS"})
		if err != nil {
			continue
		}
		if !pattern.MatchString(info.Strings["Name"]) {
			continue
		}

		procStatus = append(procStatus, &processStatus{Name: info.Strings["Name"], Pid: pid, VmRSS: info.KBytes["VmRSS"]})
	}

	return procStatus, nil
}

// OOMMonitor kills the largest matching worker child when available
// memory drops below the threshold. A whole-canvas extract can pull
// hundreds of MB per granule, so the pool treats every child as
// restartable at any point.
type OOMMonitor struct {
	ExecMatch    string
	OOMThreshold int
	Verbose      bool
}

func NewOOMMonitor(execMatch string, oomThreshold int, verbose bool) *OOMMonitor {
	return &OOMMonitor{
		ExecMatch:    execMatch,
		OOMThreshold: oomThreshold,
		Verbose:      verbose,
	}
}

func (mon *OOMMonitor) getPollInterval(memInfo *memoryInfo) int {
	// expected memory fill rate: 6000 MB/s
	fillRate := 6000 * 1024

	remaining := int(memInfo.AvailableMemory) - mon.OOMThreshold
	if remaining <= 0 {
		return 0
	}

	// predicted time to fill in ms
	predictedTime := int(float32(remaining) / float32(fillRate) * 1000.0)
	if predictedTime < 100 {
		return 100
	}
	if predictedTime > 1000 {
		return 1000
	}
	return predictedTime
}

func (mon *OOMMonitor) StartMonitorLoop() error {
	pattern := regexp.MustCompile(mon.ExecMatch)

	isMemInfoFirst := true
	isNoProcessFound := true
	for {
		memInfo, err := getMemoryInfo()
		if err != nil {
			return err
		}

		if mon.Verbose && isMemInfoFirst {
			log.Printf("meminfo (KB), total: %d, available: %d, OOM threshold: %d", memInfo.TotalMemory, memInfo.AvailableMemory, mon.OOMThreshold)
			isMemInfoFirst = false
		}

		interval := mon.getPollInterval(memInfo)
		if interval >= 100 {
			time.Sleep(time.Duration(interval) * time.Millisecond)
			continue
		}

		procStatus, err := findProcessStatus(pattern)
		if err != nil {
			return err
		}

		maxProc := &processStatus{Pid: -1, VmRSS: -1}
		for _, proc := range procStatus {
			if proc.VmRSS > maxProc.VmRSS {
				maxProc = proc
			}
		}

		if maxProc.Pid > 0 {
			syscall.Kill(maxProc.Pid, syscall.SIGKILL)
			if mon.Verbose {
				log.Printf("OOM SIGKILL sent to process: %s, PID: %d", maxProc.Name, maxProc.Pid)
			}

			for i := 1; i < 100; i++ {
				if err := syscall.Kill(maxProc.Pid, 0); err != nil {
					if mon.Verbose {
						log.Printf("OOM terminated process in %.1f secs: %s, PID: %d", float32(i)*0.1, maxProc.Name, maxProc.Pid)
					}
					break
				}
				time.Sleep(100 * time.Millisecond)
			}
		} else {
			if mon.Verbose && isNoProcessFound {
				log.Printf("no process found with exec matching pattern: %s", mon.ExecMatch)
				isNoProcessFound = false
			}
			time.Sleep(1000 * time.Millisecond)
		}
	}
}
