package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cuemby/librarian/pkg/errs"
	"github.com/cuemby/librarian/pkg/types"
	bolt "go.etcd.io/bbolt"
)

// ObsidInferenceMode selects how RegisterInstances derives an obsid for a
// file whose name doesn't carry one explicitly.
type ObsidInferenceMode string

const (
	// ObsidNone performs no inference; the caller must supply obsid some
	// other way, and RegisterInstances fails outright.
	ObsidNone ObsidInferenceMode = "none"
	// ObsidHERA infers obsid by looking for already-cataloged files
	// sharing the candidate's first three dot-separated name components
	// ("zen.<JD-int>.<JD-frac>"), e.g. "zen.1234567.12345.sum.uvh5".
	ObsidHERA ObsidInferenceMode = "hera"
	// ObsidSO infers obsid the same way using the first two
	// underscore-separated name components ("book_id"), e.g.
	// "obs_1234567890_sat1.g3".
	ObsidSO ObsidInferenceMode = "so"
	// ObsidTesting parses a Julian Date out of the name's second and
	// third dot-separated components and converts it to GPS seconds.
	// Used only by tests; there is no real-world naming convention this
	// corresponds to.
	ObsidTesting ObsidInferenceMode = "_testing"
)

// inferObsidLocked derives an obsid for name under mode, run inside an
// already-open transaction so hera/so inference can consult already
// cataloged files with the same name prefix. Inference must be certain:
// if zero or more than one distinct obsid is found among files sharing the
// prefix, this fails with BadRequest rather than guessing.
func (c *Catalog) inferObsidLocked(tx *bolt.Tx, mode ObsidInferenceMode, name string) (int64, error) {
	switch mode {
	case ObsidNone, "":
		return 0, errs.BadRequestf("refusing to infer obsid of candidate new file %q: obsid_inference_mode is \"none\"", name)
	case ObsidHERA:
		return inferByPrefix(tx, name, ".", 3, 4, "HERA")
	case ObsidSO:
		// SO accepts a bare two-token "book_id" name; HERA needs at
		// least one component after its three-token prefix.
		return inferByPrefix(tx, name, "_", 2, 2, "SO")
	case ObsidTesting:
		return inferTestingObsid(name)
	default:
		return 0, errs.BadRequestf("configuration problem: unknown obsid_inference_mode %q", mode)
	}
}

// inferByPrefix implements the hera/so inference rule: split name on sep,
// take the first n fields as a prefix, and require that every already
// cataloged file sharing that prefix agree on exactly one obsid. minBits
// is the mode's own minimum token count; the two modes disagree on
// whether the prefix must be followed by more components.
func inferByPrefix(tx *bolt.Tx, name, sep string, n, minBits int, modeLabel string) (int64, error) {
	bits := strings.Split(name, sep)
	if len(bits) < minBits {
		return 0, errs.BadRequestf("need to infer obsid of %s file %q, but its name looks weird", modeLabel, name)
	}
	prefix := strings.Join(bits[:n], sep) + sep

	obsids := map[int64]bool{}
	cur := tx.Bucket(bucketFiles).Cursor()
	for k, v := cur.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = cur.Next() {
		var f types.File
		if err := json.Unmarshal(v, &f); err != nil {
			return 0, err
		}
		if f.Obsid != nil {
			obsids[*f.Obsid] = true
		}
	}

	if len(obsids) != 1 {
		return 0, errs.BadRequestf("need to infer obsid of %s file %q, but got %d candidate obsids from similarly-named files", modeLabel, name, len(obsids))
	}
	for id := range obsids {
		return id, nil
	}
	panic("unreachable")
}

func inferTestingObsid(name string) (int64, error) {
	bits := strings.Split(name, ".")
	if len(bits) < 4 {
		return 0, errs.BadRequestf("need to infer obsid of _testing file %q, but its name looks weird", name)
	}
	jd, err := strconv.ParseFloat(bits[1]+"."+bits[2], 64)
	if err != nil {
		return 0, errs.BadRequestf("need to infer obsid of _testing file %q: %v", name, err)
	}
	return types.JDToGPSSeconds(jd), nil
}
