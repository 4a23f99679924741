// Package resource defines the view of EC2 objects that shotty lists and acts on.
// EC2 owns every one of these; nothing here is persisted.
package resource

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// Instance states used by the snapshot workflow.
const (
	StateRunning = "running"
	StateStopped = "stopped"
)

// Snapshot states.
const (
	SnapshotPending   = "pending"
	SnapshotCompleted = "completed"
)

// NoProject is printed for instances without a project tag.
const NoProject = "<none>"

// Record is anything an emitter can print.
type Record interface {
	Header() []string
	Fields() []string
	TableFields() []string
}

// Instance is an EC2 virtual machine.
type Instance struct {
	ID               string            `json:"id" yaml:"id"`
	Type             string            `json:"type" yaml:"type"`
	AvailabilityZone string            `json:"availability_zone" yaml:"availability_zone"`
	State            string            `json:"state" yaml:"state"`
	PublicDNSName    string            `json:"public_dns_name" yaml:"public_dns_name"`
	Tags             map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// TagKey selects which tag Fields reports as the project. Empty means "Project".
	TagKey string `json:"-" yaml:"-"`
}

// Project returns the value of the given project tag, or NoProject.
func (i Instance) Project(tagKey string) string {
	if tagKey == "" {
		tagKey = "Project"
	}
	if v, ok := i.Tags[tagKey]; ok {
		return v
	}
	return NoProject
}

// IsRunning reports whether the instance is in the running state.
func (i Instance) IsRunning() bool {
	return i.State == StateRunning
}

// Header returns the column names for table output.
func (i Instance) Header() []string {
	return []string{"INSTANCE", "TYPE", "ZONE", "STATE", "PUBLIC DNS", "PROJECT"}
}

// Fields returns the plain text columns.
func (i Instance) Fields() []string {
	return []string{i.ID, i.Type, i.AvailabilityZone, i.State, i.PublicDNSName, i.Project(i.TagKey)}
}

// TableFields returns the columns for table output.
func (i Instance) TableFields() []string {
	f := i.Fields()
	if f[4] == "" {
		f[4] = "-"
	}
	return f
}

// Volume is an EBS volume attached to an instance.
type Volume struct {
	ID         string `json:"id" yaml:"id"`
	InstanceID string `json:"instance_id" yaml:"instance_id"`
	State      string `json:"state" yaml:"state"`
	SizeGiB    int32  `json:"size_gib" yaml:"size_gib"`
	Encrypted  bool   `json:"encrypted" yaml:"encrypted"`
}

func (v Volume) encryption() string {
	if v.Encrypted {
		return "Encrypted"
	}
	return "Not Encrypted"
}

// Header returns the column names for table output.
func (v Volume) Header() []string {
	return []string{"VOLUME", "INSTANCE", "STATE", "SIZE", "ENCRYPTION"}
}

// Fields returns the plain text columns.
func (v Volume) Fields() []string {
	return []string{v.ID, v.InstanceID, v.State, strconv.Itoa(int(v.SizeGiB)) + "GiB", v.encryption()}
}

// TableFields is Fields with a humanized size.
func (v Volume) TableFields() []string {
	size := humanize.IBytes(uint64(v.SizeGiB) * humanize.GiByte)
	return []string{v.ID, v.InstanceID, v.State, size, v.encryption()}
}

// Snapshot is a point-in-time copy of a volume.
type Snapshot struct {
	ID         string    `json:"id" yaml:"id"`
	VolumeID   string    `json:"volume_id" yaml:"volume_id"`
	InstanceID string    `json:"instance_id" yaml:"instance_id"`
	State      string    `json:"state" yaml:"state"`
	Progress   string    `json:"progress" yaml:"progress"`
	StartTime  time.Time `json:"start_time" yaml:"start_time"`
}

// Header returns the column names for table output.
func (s Snapshot) Header() []string {
	return []string{"SNAPSHOT", "VOLUME", "INSTANCE", "STATE", "PROGRESS", "STARTED"}
}

// Fields returns the plain text columns.
func (s Snapshot) Fields() []string {
	started := fmt.Sprintf("%s UTC", s.StartTime.UTC().Format(time.ANSIC))
	return []string{s.ID, s.VolumeID, s.InstanceID, s.State, s.Progress, started}
}

// TableFields is Fields with the start time as a relative age.
func (s Snapshot) TableFields() []string {
	return []string{s.ID, s.VolumeID, s.InstanceID, s.State, s.Progress, humanize.Time(s.StartTime)}
}

// SortSnapshots orders snapshots newest first.
func SortSnapshots(snaps []Snapshot) {
	sort.SliceStable(snaps, func(a, b int) bool {
		return snaps[a].StartTime.After(snaps[b].StartTime)
	})
}

// HasPendingSnapshot returns true if the most recent snapshot is still pending.
// snaps must be ordered newest first.
func HasPendingSnapshot(snaps []Snapshot) bool {
	return len(snaps) > 0 && snaps[0].State == SnapshotPending
}
