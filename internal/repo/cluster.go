package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/opsdeck/kube-triage/internal/cache"
	"github.com/opsdeck/kube-triage/internal/models"
)

const clusterInfoCacheKey = "kube-triage:cluster-info"

// ClusterConfig holds connection parameters for the target cluster.
type ClusterConfig struct {
	Kubeconfig     string
	Context        string
	RequestTimeout time.Duration
	ClusterInfoTTL time.Duration
}

// ClusterClient reads cluster state through the Kubernetes API. It caches the
// slow-changing cluster info (version, node count) in the configured cache
// provider so repeated diagnoses do not hit the discovery endpoint each time.
type ClusterClient struct {
	client  kubernetes.Interface
	cache   cache.Provider
	logger  *slog.Logger
	context string
	timeout time.Duration
	infoTTL time.Duration
}

// NewClusterClient builds a client from a kubeconfig path and optional context
// override. An empty path falls back to $KUBECONFIG and then ~/.kube/config.
func NewClusterClient(cfg ClusterConfig, cacheProvider cache.Provider, logger *slog.Logger) (*ClusterClient, error) {
	kubeconfig := cfg.Kubeconfig
	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	if kubeconfig == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve kubeconfig path: %w", err)
		}
		kubeconfig = filepath.Join(homeDir, ".kube", "config")
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig},
		&clientcmd.ConfigOverrides{CurrentContext: cfg.Context},
	).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig %s: %w", kubeconfig, err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("create kubernetes client: %w", err)
	}

	return newClusterClient(clientset, cfg, cacheProvider, logger), nil
}

func newClusterClient(client kubernetes.Interface, cfg ClusterConfig, cacheProvider cache.Provider, logger *slog.Logger) *ClusterClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	infoTTL := cfg.ClusterInfoTTL
	if infoTTL <= 0 {
		infoTTL = 5 * time.Minute
	}
	return &ClusterClient{
		client:  client,
		cache:   cacheProvider,
		logger:  logger,
		context: cfg.Context,
		timeout: timeout,
		infoTTL: infoTTL,
	}
}

// CheckAccess verifies the credentials can reach the cluster with a cheap
// single-item node list.
func (c *ClusterClient) CheckAccess(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{Limit: 1}); err != nil {
		return fmt.Errorf("cluster access check failed: %w", err)
	}
	return nil
}

// ListPods returns pods in the namespace, or across all namespaces when empty.
func (c *ClusterClient) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	return list.Items, nil
}

// ListDeployments returns deployments in the namespace.
func (c *ClusterClient) ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.client.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return list.Items, nil
}

// ListServices returns services in the namespace.
func (c *ClusterClient) ListServices(ctx context.Context, namespace string) ([]corev1.Service, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.client.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return list.Items, nil
}

// ListEvents returns events in the namespace.
func (c *ClusterClient) ListEvents(ctx context.Context, namespace string) ([]corev1.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.client.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return list.Items, nil
}

// ClusterInfo reports the server version and node count, served from cache
// when a fresh entry exists.
func (c *ClusterClient) ClusterInfo(ctx context.Context) (models.ClusterInfo, error) {
	if data, err := c.cache.Get(ctx, clusterInfoCacheKey); err == nil {
		var info models.ClusterInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return info, nil
		}
		c.logger.Warn("discarding malformed cluster-info cache entry")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	version, err := c.client.Discovery().ServerVersion()
	if err != nil {
		return models.ClusterInfo{}, fmt.Errorf("fetch server version: %w", err)
	}

	nodes, err := c.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.ClusterInfo{}, fmt.Errorf("list nodes: %w", err)
	}

	info := models.ClusterInfo{
		Version:   version.GitVersion,
		NodeCount: len(nodes.Items),
		Context:   c.context,
	}

	if data, err := json.Marshal(info); err == nil {
		if err := c.cache.Set(ctx, clusterInfoCacheKey, data, c.infoTTL); err != nil {
			c.logger.Warn("failed to cache cluster info", "error", err)
		}
	}
	return info, nil
}
