package models

import (
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
)

// Snapshot bundles a point-in-time view of the cluster objects the classifier
// consumes. Pure data; the gather stage guarantees it is either complete or the
// diagnosis run fails as a whole.
type Snapshot struct {
	Pods        []corev1.Pod
	Deployments []appsv1.Deployment
	Services    []corev1.Service
	Events      []corev1.Event
	ClusterInfo ClusterInfo
	TakenAt     time.Time
}

// ClusterInfo carries coarse cluster metadata gathered alongside the snapshot.
type ClusterInfo struct {
	Version   string `json:"version"`
	NodeCount int    `json:"nodeCount"`
	Context   string `json:"context,omitempty"`
}
