package main

/* crawl walks a granule container store and prints one JSON line per
   (container, band namespace) pair, ready for POSTing to the granule
   index /ingest endpoint. Header decoding runs locally by default;
   with -rpc the decoding is fanned out to seg-server workers. */

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	extr "github.com/nci/ltsky/crawl/extractor"
	proc "github.com/nci/ltsky/processor"
)

var (
	product       = flag.String("product", "", "Product name stamped on every record.")
	conc          = flag.Int("conc", 16, "Concurrent crawlers/decoders.")
	pattern       = flag.String("pattern", "", "File selection: expression over path/type locally, plain regexp with -rpc. Default matches *.lts")
	followSymlink = flag.Bool("follow_symlink", false, "Follow symlinks while crawling.")
	rpcNodes      = flag.String("rpc", "", "Comma separated seg-server addresses for remote header decoding.")
)

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	flag.Parse()

	if len(*product) == 0 {
		log.Fatal("Please provide a -product name")
	}

	if flag.NArg() != 1 {
		log.Fatal("Please provide a path to the granule store or '-' for reading from stdin")
	}

	rootPath := flag.Arg(0)
	if rootPath == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Scan()
		rootPath = scanner.Text()
	}
	rootPath, err := filepath.Abs(rootPath)
	ensure(err)

	if len(*rpcNodes) > 0 {
		crawlRemote(rootPath)
		return
	}
	crawlLocal(rootPath)
}

func crawlLocal(rootPath string) {
	patternExpr := *pattern
	if len(patternExpr) == 0 {
		patternExpr = `type == 'd' || path =~ '\.lts$'`
	}
	expr, err := extr.ParsePatternExpression(patternExpr)
	ensure(err)

	crawler := extr.NewGranuleCrawler(*conc, expr, *followSymlink)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var outLock sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < *conc; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range crawler.Outputs {
				records, err := extr.ExtractGranuleInfo(path, *product)
				if err != nil {
					log.Printf("%v", err)
					continue
				}
				outLock.Lock()
				for _, rec := range records {
					line, err := json.Marshal(rec)
					if err != nil {
						log.Printf("%s: %v", path, err)
						continue
					}
					out.Write(line)
					out.WriteString("\n")
				}
				outLock.Unlock()
			}
		}()
	}

	err = crawler.Crawl(rootPath)
	wg.Wait()
	if err != nil {
		os.Stderr.Write([]byte(err.Error() + "\n"))
	}
}

func crawlRemote(rootPath string) {
	contains := regexp.MustCompile(`\.lts$`)
	if len(*pattern) > 0 {
		contains = regexp.MustCompile(*pattern)
	}

	errChan := make(chan error, 100)
	go func() {
		for err := range errChan {
			log.Printf("%v", err)
		}
	}()

	pipeline := proc.InitInfoPipeline(context.Background(), strings.Split(*rpcNodes, ","), errChan)
	<-pipeline.Process(rootPath, *product, contains, os.Stdout)
}
