// Granule index API
// Copyright (c) 2017, NCI, Australian National University.

package main

import (
	"bufio"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/nci/gomemcache/memcache"
)

var (
	db       *sql.DB
	mc       *memcache.Client
	dbName   = flag.String("database", "lts", "database name")
	dbUser   = flag.String("user", "api", "database user name")
	dbPool   = flag.Int("pool", 8, "database pool size")
	dbLimit  = flag.Int("limit", 64, "database concurrent requests")
	httpPort = flag.Int("port", 8080, "http port")
	mcURI    = flag.String("memcache", "", "memcache uri host:port")
)

// Granule is one (container file, band namespace) index record.
type Granule struct {
	Product   string    `json:"product,omitempty"`
	Path      string    `json:"path"`
	NameSpace string    `json:"namespace"`
	ArrayType string    `json:"array_type"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Years     []int     `json:"years"`
	NoData    float64   `json:"nodata"`
	MinX      float64   `json:"min_x"`
	MinY      float64   `json:"min_y"`
	MaxX      float64   `json:"max_x"`
	MaxY      float64   `json:"max_y"`
	Created   time.Time `json:"created,omitempty"`
}

type granuleResponse struct {
	Granules []*Granule `json:"granules"`
}

type productSummary struct {
	Product     string `json:"product"`
	NumGranules int    `json:"num_granules"`
	StartYear   int    `json:"start_year"`
	EndYear     int    `json:"end_year"`
}

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(response http.ResponseWriter, err error, status int) {
	http.Error(response, fmt.Sprintf(`{ "error": %q }`, err.Error()), status)
}

func cacheLookup(response http.ResponseWriter, request *http.Request) (string, bool) {
	if mc == nil {
		return "", false
	}

	buff := md5.Sum([]byte(request.URL.RequestURI()))
	hash := hex.EncodeToString(buff[:])

	if cached, ok := mc.Get(hash); ok == nil {
		response.Write(cached.Value)
		return hash, true
	}
	return hash, false
}

func cacheStore(hash string, payload []byte) {
	if mc != nil && len(hash) > 0 {
		// don't care about errors; memcache may not necessarily retain this anyway
		mc.Set(&memcache.Item{Key: hash, Value: payload})
	}
}

func granulesHandler(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	hash, hit := cacheLookup(response, request)
	if hit {
		return
	}

	query := request.URL.Query()

	product := query.Get("product")
	if len(product) == 0 {
		httpJSONError(response, errors.New("product is required"), 400)
		return
	}

	if query.Get("summary") == "1" {
		granuleSummaryHandler(response, hash, product)
		return
	}

	var nameSpaces []string
	if ns := query.Get("namespace"); len(ns) > 0 {
		nameSpaces = strings.Split(ns, ",")
	}

	time0, time1 := -1, -1
	var err error
	if t := query.Get("time0"); len(t) > 0 {
		if time0, err = strconv.Atoi(t); err != nil {
			httpJSONError(response, fmt.Errorf("invalid time0: %v", t), 400)
			return
		}
	}
	if t := query.Get("time1"); len(t) > 0 {
		if time1, err = strconv.Atoi(t); err != nil {
			httpJSONError(response, fmt.Errorf("invalid time1: %v", t), 400)
			return
		}
	}

	var bbox []float64
	if b := query.Get("bbox"); len(b) > 0 {
		for _, comp := range strings.Split(b, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(comp), 64)
			if err != nil {
				httpJSONError(response, fmt.Errorf("invalid bbox: %v", b), 400)
				return
			}
			bbox = append(bbox, v)
		}
		if len(bbox) != 4 {
			httpJSONError(response, fmt.Errorf("invalid bbox: %v", b), 400)
			return
		}
	}

	// A multi-namespace query asks for container files carrying all of
	// the listed bands, one record per file. The shape metadata comes
	// from the first listed namespace.
	sqlStmt := `select path, namespace, array_type, rows, cols, years, nodata, min_x, min_y, max_x, max_y, created
		from granules
		where product = $1
		and ($2::text[] is null or namespace = ($2::text[])[1])
		and ($3::integer < 0 or year1 >= $3)
		and ($4::integer < 0 or year0 <= $4)
		and ($5::numeric[] is null or (max_x >= ($5::numeric[])[1] and min_x <= ($5::numeric[])[3]
			and max_y >= ($5::numeric[])[2] and min_y <= ($5::numeric[])[4]))
		and ($2::text[] is null or path in (
			select path from granules
			where product = $1 and namespace = any($2::text[])
			group by path
			having count(distinct namespace) = array_length($2::text[], 1)))
		order by path`

	var nsArg interface{}
	if len(nameSpaces) > 0 {
		nsArg = pq.Array(nameSpaces)
	}
	var bboxArg interface{}
	if len(bbox) == 4 {
		bboxArg = pq.Array(bbox)
	}

	rows, err := db.Query(sqlStmt, product, nsArg, time0, time1, bboxArg)
	if err != nil {
		httpJSONError(response, err, 400)
		return
	}
	defer rows.Close()

	res := &granuleResponse{Granules: []*Granule{}}
	for rows.Next() {
		g := &Granule{}
		var years pq.Int64Array
		err := rows.Scan(&g.Path, &g.NameSpace, &g.ArrayType, &g.Rows, &g.Cols, &years,
			&g.NoData, &g.MinX, &g.MinY, &g.MaxX, &g.MaxY, &g.Created)
		if err != nil {
			httpJSONError(response, err, 500)
			return
		}
		for _, y := range years {
			g.Years = append(g.Years, int(y))
		}
		res.Granules = append(res.Granules, g)
	}
	if err := rows.Err(); err != nil {
		httpJSONError(response, err, 500)
		return
	}

	payload, err := json.Marshal(res)
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}
	response.Write(payload)
	cacheStore(hash, payload)
}

// granuleSummaryHandler serves the per-product roll-up used by the
// catalogue pages.
func granuleSummaryHandler(response http.ResponseWriter, hash string, product string) {
	sqlStmt := `select count(distinct path), coalesce(min(year0), 0), coalesce(max(year1), 0)
		from granules where product = $1`

	summary := struct {
		Product      string `json:"product"`
		GranuleCount int    `json:"granule_count"`
		StartYear    int    `json:"start_year"`
		EndYear      int    `json:"end_year"`
	}{Product: product}

	err := db.QueryRow(sqlStmt, product).Scan(&summary.GranuleCount, &summary.StartYear, &summary.EndYear)
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}

	payload, err := json.Marshal(&summary)
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}
	response.Write(payload)
	cacheStore(hash, payload)
}

func productsHandler(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	hash, hit := cacheLookup(response, request)
	if hit {
		return
	}

	rows, err := db.Query(`select product, count(*), min(year0), max(year1)
		from granules group by product order by product`)
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}
	defer rows.Close()

	products := []*productSummary{}
	for rows.Next() {
		p := &productSummary{}
		if err := rows.Scan(&p.Product, &p.NumGranules, &p.StartYear, &p.EndYear); err != nil {
			httpJSONError(response, err, 500)
			return
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		httpJSONError(response, err, 500)
		return
	}

	payload, err := json.Marshal(products)
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}
	response.Write(payload)
	cacheStore(hash, payload)
}

// ingestHandler upserts one JSON granule record per request body line,
// the format the crawler emits.
func ingestHandler(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	if request.Method != "POST" {
		httpJSONError(response, errors.New("ingest requires POST"), 400)
		return
	}

	tx, err := db.Begin()
	if err != nil {
		httpJSONError(response, err, 500)
		return
	}

	stmt, err := tx.Prepare(`insert into granules
		(product, path, namespace, array_type, rows, cols, years, year0, year1, nodata, min_x, min_y, max_x, max_y, created)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		on conflict (path, namespace) do update set
		product = excluded.product, array_type = excluded.array_type,
		rows = excluded.rows, cols = excluded.cols,
		years = excluded.years, year0 = excluded.year0, year1 = excluded.year1,
		nodata = excluded.nodata,
		min_x = excluded.min_x, min_y = excluded.min_y,
		max_x = excluded.max_x, max_y = excluded.max_y,
		created = now()`)
	if err != nil {
		tx.Rollback()
		httpJSONError(response, err, 500)
		return
	}

	nRecords := 0
	scanner := bufio.NewScanner(request.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}

		var g Granule
		if err := json.Unmarshal([]byte(line), &g); err != nil {
			tx.Rollback()
			httpJSONError(response, fmt.Errorf("record %d: %v", nRecords+1, err), 400)
			return
		}
		if len(g.Product) == 0 || len(g.Path) == 0 || len(g.NameSpace) == 0 {
			tx.Rollback()
			httpJSONError(response, fmt.Errorf("record %d: product, path and namespace are required", nRecords+1), 400)
			return
		}

		year0, year1 := 0, 0
		if len(g.Years) > 0 {
			year0, year1 = g.Years[0], g.Years[len(g.Years)-1]
		}

		years := make(pq.Int64Array, len(g.Years))
		for i, y := range g.Years {
			years[i] = int64(y)
		}

		_, err = stmt.Exec(g.Product, g.Path, g.NameSpace, g.ArrayType, g.Rows, g.Cols,
			years, year0, year1, g.NoData, g.MinX, g.MinY, g.MaxX, g.MaxY)
		if err != nil {
			tx.Rollback()
			httpJSONError(response, fmt.Errorf("record %d: %v", nRecords+1, err), 400)
			return
		}
		nRecords++
	}
	if err := scanner.Err(); err != nil {
		tx.Rollback()
		httpJSONError(response, err, 400)
		return
	}

	if err := tx.Commit(); err != nil {
		httpJSONError(response, err, 500)
		return
	}

	fmt.Fprintf(response, `{ "ingested": %d }`, nRecords)
}

func main() {
	flag.Parse()

	log.Printf("dbUser %s dbName %s dbPool %d httpPort %d", *dbUser, *dbName, *dbPool, *httpPort)

	dbinfo := fmt.Sprintf("user=%s host=/var/run/postgresql dbname=%s sslmode=disable", *dbUser, *dbName)

	var err error
	db, err = sql.Open("postgres", dbinfo)

	if err != nil {
		panic(err)
	}

	defer db.Close()

	db.SetMaxIdleConns(*dbPool)
	db.SetMaxOpenConns(*dbLimit)

	if *mcURI != "" {
		// lazy connection; errors returned in .Get
		mc = memcache.New(*mcURI)
	}

	http.HandleFunc("/granules", granulesHandler)
	http.HandleFunc("/products", productsHandler)
	http.HandleFunc("/ingest", ingestHandler)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", *httpPort), nil))
}
