// Command eigenctl drives the CISS region-eigensolver from the
// command line: parse spec.md §6's flag table, build a demonstration
// operator, and report every eigenvalue found inside the requested
// region.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gospectral/eigen/frontend"
	"github.com/gospectral/eigen/internal/testmat"
)

var (
	centerFlag = flag.String("center", "0,0", "region center, re,im")
	radius     = flag.Float64("radius", 1, "region horizontal radius")
	vscale     = flag.Float64("vscale", 1, "region vertical scale")

	n = flag.Int("n", 32, "quadrature points (even)")

	l    = flag.Int("l", 8, "working block size")
	lmax = flag.Int("lmax", 64, "cap on adaptive block growth")

	m = flag.Int("m", 0, "moment order (Hankel block count); 0 selects N/4")

	partitions = flag.Int("partitions", 1, "comm groups sharing one shifted solve")

	realMatrices = flag.Bool("real-matrices", false, "enable conjugate-symmetry quadrature halving")

	delta    = flag.Float64("delta", 1e-12, "singular-value cutoff for numerical rank")
	spurious = flag.Float64("spurious-threshold", 1e-4, "Ritz-pair reliability cutoff")

	refineInner     = flag.Int("refine-inner", 1, "inner refinement budget")
	refineOuter     = flag.Int("refine-outer", 2, "outer refinement budget")
	refineBlocksize = flag.Int("refine-blocksize", 0, "refinement block-size increment")

	diag = flag.String("diag", "1,2,3,4,5", "comma-separated real diagonal entries of the demonstration operator")
)

func parseCenter(s string) (complex128, error) {
	parts := strings.SplitN(s, ",", 2)
	re, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, errors.Wrap(err, "center real part")
	}
	if len(parts) == 1 {
		return complex(re, 0), nil
	}
	im, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, errors.Wrap(err, "center imaginary part")
	}
	return complex(re, im), nil
}

func parseDiag(s string) ([]complex128, error) {
	fields := strings.Split(s, ",")
	vals := make([]complex128, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("diag entry %d", i))
		}
		vals[i] = complex(v, 0)
	}
	return vals, nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Lshortfile)

	if err := run(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run() error {
	center, err := parseCenter(*centerFlag)
	if err != nil {
		return errors.Wrap(err, "eigenctl")
	}
	vals, err := parseDiag(*diag)
	if err != nil {
		return errors.Wrap(err, "eigenctl")
	}

	a := testmat.Diagonal(vals)

	region := &frontend.Region{
		Center:            center,
		Radius:            *radius,
		VScale:            *vscale,
		N:                 *n,
		L:                 *l,
		LMax:              *lmax,
		M:                 *m,
		Delta:             *delta,
		SpuriousThreshold: *spurious,
		RefineInner:       *refineInner,
		RefineOuter:       *refineOuter,
		RefineBlocksize:   *refineBlocksize,
		RealMatrices:      *realMatrices,
		Partitions:        *partitions,
	}

	s := frontend.New[complex128]()
	if err := s.SetVariant(frontend.VariantCISS); err != nil {
		return errors.Wrap(err, "eigenctl")
	}
	s.SetProblem(a, nil)
	if err := s.SetTarget(frontend.Target{Region: region}); err != nil {
		return errors.Wrap(err, "eigenctl")
	}
	s.SetMonitor(func(it, nconv int, residuals []float64) {
		log.Printf("iteration %d: %d converged", it, nconv)
	})

	res, err := s.Solve()
	if err != nil {
		return errors.Wrap(err, "eigenctl: solve")
	}

	fmt.Printf("reason: %v\n", res.Reason)
	fmt.Printf("converged: %d/%d\n", s.Converged(), len(res.Values))
	for i, v := range res.Values {
		if res.Rejected != nil && res.Rejected[i] {
			continue
		}
		rel := 0.0
		if res.Reliability != nil {
			rel = res.Reliability[i]
		}
		fmt.Printf("  lambda[%d] = %v  reliability=%g\n", i, v, rel)
	}
	return nil
}
