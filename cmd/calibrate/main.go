package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/BTBurke/oscmon/pkg/rng"
	"github.com/BTBurke/oscmon/pkg/stat"
	"github.com/BTBurke/oscmon/pkg/store"
)

// Checks the Allan estimator against noise with a known log-log slope: about -1 for white
// noise and -0.5 for a random walk, over windows the size of the default store.
const (
	Loops int = 2000
	Cap   int = store.DefaultCapacity
)

var wg sync.WaitGroup

type noise func(r rng.RNG, n int) []float64

func white(r rng.RNG, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Rand()
	}
	return out
}

func walk(r rng.RNG, n int) []float64 {
	out := make([]float64, n)
	sum := 0.0
	for i := range out {
		sum += r.Rand()
		out[i] = sum
	}
	return out
}

type results struct {
	name string
	mu   sync.Mutex
	val  map[int][]float64
}

func (r *results) record(tau int, dev float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.val[tau] = append(r.val[tau], dev)
}

func newResults(name string) *results {
	return &results{
		name: name,
		val:  make(map[int][]float64),
	}
}

func main() {
	start := time.Now()
	models := map[string]noise{"white": white, "walk": walk}
	all := make([]*results, 0, len(models))
	seed := int64(1)
	for name, fn := range models {
		res := newResults(name)
		all = append(all, res)
		for i := 0; i < Loops; i++ {
			wg.Add(1)
			go curve(res, fn, seed)
			seed++
		}
	}
	wg.Wait()
	fmt.Printf("Time Elapsed: %v\n", time.Since(start))

	for _, res := range all {
		taus := make([]int, 0, len(res.val))
		for tau := range res.val {
			taus = append(taus, tau)
		}
		sort.Ints(taus)

		var b bytes.Buffer
		xs := make([]float64, 0, len(taus))
		ys := make([]float64, 0, len(taus))
		for _, tau := range taus {
			mean, stddev := stat.MeanAndStdDev(res.val[tau])
			b.WriteString(fmt.Sprintf("%d %g %g\n", tau, mean, stddev))
			xs = append(xs, math.Log10(float64(tau)))
			ys = append(ys, math.Log10(mean))
		}
		fmt.Printf("Result: noise=%s slope=%1.3f taus=%d\n", res.name, stat.Slope(xs, ys), len(taus))
		if err := ioutil.WriteFile(fmt.Sprintf("%s.txt", res.name), b.Bytes(), 0644); err != nil {
			log.Fatalf("unexpected error writing results: %v", err)
		}
	}
}

func curve(res *results, fn noise, seed int64) {
	defer wg.Done()
	r := rng.NewSeededNormalRNG(0, 1, seed)
	for _, p := range stat.Curve(fn(r, Cap)) {
		res.record(p.Tau, p.Deviation)
	}
}

