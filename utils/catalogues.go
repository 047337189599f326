package utils

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const CatalogueDirName = "catalog"
const catalogueHomeTitle = "Home"

type CatalogueHandler struct {
	Path              string
	URLHost           string
	URLPathRoot       string
	StaticRoot        string
	IndexAddress      string
	IndexTemplateRoot string
	ConfigMap         map[string]*Config
	Verbose           bool
	Output            http.ResponseWriter
}

func NewCatalogueHandler(path, urlHost, urlPathRoot, staticRoot, indexAddress, indexTemplateRoot string, configMap map[string]*Config, verbose bool, output http.ResponseWriter) *CatalogueHandler {
	return &CatalogueHandler{
		Path:              path,
		URLHost:           urlHost,
		URLPathRoot:       urlPathRoot,
		StaticRoot:        staticRoot,
		IndexAddress:      indexAddress,
		IndexTemplateRoot: indexTemplateRoot,
		ConfigMap:         configMap,
		Verbose:           verbose,
		Output:            output,
	}
}

const catalogueIndexFile = "index.html"
const catalogueProductFile = "lts_products.json"

func (h *CatalogueHandler) Process() int {
	if len(CheckIndexFile(h.StaticRoot, h.Path, h.Verbose)) > 0 {
		return 1
	}

	h.Output.Header().Set("Access-Control-Allow-Origin", "*")
	h.Output.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")

	indexPath := strings.Trim(h.Path, "/")
	ext := filepath.Ext(indexPath)
	if len(ext) > 0 {
		if strings.HasSuffix(indexPath, catalogueProductFile) {
			h.renderProductFile(filepath.Dir(indexPath))
			return 0
		}
		indexPath = filepath.Dir(indexPath)
		if indexPath == "." {
			indexPath = ""
		}
	}

	if len(indexPath) == 0 {
		h.renderRootCataloguePage()
	} else {
		h.renderNamespacePage(indexPath)
	}

	return 0
}

func CheckIndexFile(staticRoot string, path string, verbose bool) string {
	path = "/" + strings.Trim(path, "/")
	ext := filepath.Ext(path)

	indexFile := path
	if len(ext) > 0 {
		isIndex := false
		for _, f := range []string{catalogueIndexFile, catalogueProductFile} {
			if strings.HasSuffix(path, f) {
				isIndex = true
				break
			}
		}
		if !isIndex {
			return ""
		}
		indexFile = filepath.Join(staticRoot, indexFile)
	} else {
		indexFile = filepath.Join(staticRoot, indexFile, "index.html")
	}

	absPath, err := filepath.Abs(indexFile)
	if err != nil {
		if verbose {
			log.Printf("CheckIndexFile: %v", err)
		}
		return ""
	}

	if !strings.HasPrefix(absPath, staticRoot) {
		if verbose {
			log.Printf("CheckIndexFile absPath prefix: %v -> %v", path, absPath)
		}
		return ""
	}

	if _, err := os.Stat(absPath); err == nil {
		return absPath
	}
	return ""
}

type granuleSummary struct {
	Error        string `json:"error"`
	Product      string `json:"product"`
	GranuleCount int    `json:"granule_count"`
	StartYear    int    `json:"start_year"`
	EndYear      int    `json:"end_year"`
}

type anchor struct {
	URL   string
	Title string
}

type renderData struct {
	Navigations []*anchor
	Endpoints   []*anchor
	Title       string
	Abstract    string
}

// productDescriptor is the machine readable catalogue entry rendered
// into lts_products.json for web map clients.
type productDescriptor struct {
	Name        string
	Title       string
	Abstract    string
	DataSource  string
	ServiceURL  string
	StartYear   int
	EndYear     int
	MaxSegments int
	Indices     []string
	RGBProducts []string
}

type renderProductList struct {
	Namespace string
	Products  []*productDescriptor
}

func (h *CatalogueHandler) renderProductFile(namespace string) {
	config, ok := h.ConfigMap[namespace]
	if !ok {
		log.Printf("renderProductFile: unknown namespace %v", namespace)
		return
	}

	list := &renderProductList{Namespace: jsonEscape(namespace)}
	for ip := range config.Products {
		product := &config.Products[ip]
		desc := &productDescriptor{
			Name:        jsonEscape(product.Name),
			Title:       jsonEscape(product.Title),
			Abstract:    jsonEscape(product.Abstract),
			DataSource:  jsonEscape(product.DataSource),
			ServiceURL:  jsonEscape(fmt.Sprintf("%s/lts/%s", h.URLHost, namespace)),
			StartYear:   product.StartYear,
			EndYear:     product.EndYear,
			MaxSegments: product.MaxSegments,
		}
		for _, idx := range product.Indices {
			desc.Indices = append(desc.Indices, jsonEscape(idx.Name))
		}
		for _, rgb := range product.RGBProducts {
			desc.RGBProducts = append(desc.RGBProducts, jsonEscape(rgb))
		}
		list.Products = append(list.Products, desc)
	}

	err := ExecuteWriteTemplateFile(h.Output, list, filepath.Join(h.IndexTemplateRoot, "lts_products.tpl"))
	if err != nil {
		log.Printf("%v", err)
		return
	}
}

func (h *CatalogueHandler) renderRootCataloguePage() {
	var rd renderData
	rd.Title = catalogueHomeTitle

	namespaces := make([]string, 0, len(h.ConfigMap))
	for ns := range h.ConfigMap {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		if len(h.ConfigMap[ns].Products) == 0 {
			continue
		}
		title := ns
		if ns == "." || ns == "" {
			title = h.ConfigMap[ns].Products[0].Title
		}
		urlPath := filepath.Join(h.URLPathRoot, ns)
		a := &anchor{
			URL:   fmt.Sprintf("http://%s/%s", h.URLHost, urlPath),
			Title: title,
		}
		rd.Endpoints = append(rd.Endpoints, a)
	}

	err := ExecuteWriteTemplateFile(h.Output, rd, filepath.Join(h.IndexTemplateRoot, "catalogue_index.tpl"))
	if err != nil {
		log.Printf("%v", err)
		return
	}
}

func (h *CatalogueHandler) renderNamespacePage(indexPath string) {
	namespace := strings.Trim(indexPath, "/")
	config, ok := h.ConfigMap[namespace]
	if !ok {
		log.Printf("renderNamespacePage: unknown namespace %v", namespace)
		return
	}

	var rd renderData
	rd.Title = namespace
	if len(config.Products) == 1 {
		rd.Title = config.Products[0].Title
		rd.Abstract = config.Products[0].Abstract
	}

	urlRoot := fmt.Sprintf("http://%s/%s", h.URLHost, h.URLPathRoot)
	rd.Navigations = append(rd.Navigations, &anchor{URL: urlRoot, Title: catalogueHomeTitle})

	capab := &anchor{
		URL:   fmt.Sprintf("http://%s/lts/%s?service=LTS&request=GetCapabilities", h.URLHost, namespace),
		Title: "LTS GetCapabilities",
	}
	rd.Endpoints = append(rd.Endpoints, capab)

	urlPath := filepath.Join(CatalogueDirName, namespace, catalogueProductFile)
	prodFile := &anchor{
		URL:   fmt.Sprintf("http://%s/%s", h.URLHost, urlPath),
		Title: "Product Descriptors",
	}
	rd.Endpoints = append(rd.Endpoints, prodFile)

	for ip := range config.Products {
		product := &config.Products[ip]
		summary, err := h.getGranuleSummary(product.DataSource)
		if err != nil {
			if h.Verbose {
				log.Printf("renderNamespacePage: %v", err)
			}
			continue
		}
		granules := &anchor{
			URL:   fmt.Sprintf("http://%s/granules?product=%s", h.IndexAddress, product.DataSource),
			Title: fmt.Sprintf("%s granules (%d, %d to %d)", product.Name, summary.GranuleCount, summary.StartYear, summary.EndYear),
		}
		rd.Endpoints = append(rd.Endpoints, granules)
	}

	err := ExecuteWriteTemplateFile(h.Output, rd, filepath.Join(h.IndexTemplateRoot, "catalogue_index.tpl"))
	if err != nil {
		log.Printf("%v", err)
		return
	}
}

func (h *CatalogueHandler) getGranuleSummary(dataSource string) (*granuleSummary, error) {
	url := strings.Replace(fmt.Sprintf("http://%s/granules?product=%s&summary=1", h.IndexAddress, dataSource), " ", "%20", -1)
	if h.Verbose {
		log.Printf("catalogueHandler: %v", url)
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("granule index (%s) error: %v,%v", dataSource, url, err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("granule index (%s) error: %v,%v", dataSource, url, err)
	}

	var summary granuleSummary
	err = json.Unmarshal(body, &summary)
	if err != nil {
		return nil, fmt.Errorf("granule index (%s) json response error: %v", dataSource, err)
	}
	if len(summary.Error) > 0 {
		return nil, fmt.Errorf("granule index (%s) json response error: %v", dataSource, summary.Error)
	}

	return &summary, nil
}

func jsonEscape(i string) string {
	b, err := json.Marshal(i)
	if err != nil {
		log.Printf("Failed to JSON escape: %v", err)
		return i
	}
	s := string(b)
	return s[1 : len(s)-1]
}
