package fleet

import (
	"regexp"

	"github.com/google/uuid"

	"github.com/rabe42/state-machines/chart"
)

// Machine ids live under the sms:/// scheme:
// sms:///<uuid>/<chart-path>.  The trailing path says which chart the
// machine runs, so an id is meaningful on its own in logs and topics.

// MachineIdPrefix starts every machine id.
const MachineIdPrefix = "sms:///"

var machineIdRegexp = regexp.MustCompile(`^sms:///\w[\w.\-]*(/\w[\w.\-]*)*$`)

// ValidMachineId reports whether id is a well-formed machine id.
func ValidMachineId(id string) bool {
	return machineIdRegexp.MatchString(id)
}

// NewMachineId mints an id for a new instance of the given chart: the
// chart's path behind a fresh UUID.
func NewMachineId(chartId string) (string, error) {
	path, err := chart.NodePath(chartId)
	if err != nil {
		return "", err
	}
	return MachineIdPrefix + uuid.NewString() + "/" + path, nil
}
