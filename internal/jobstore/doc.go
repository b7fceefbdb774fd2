// Package jobstore caches the job list and the selected job's detail snapshot
// in memory. Selection epochs serialize concurrent fetches: a detail snapshot
// is only applied if the selection has not moved since the fetch was issued.
package jobstore
