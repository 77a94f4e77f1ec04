package engine

import (
	"fmt"
	"strings"

	"github.com/opsdeck/kube-triage/internal/models"
)

// Proposer builds a remediation proposal for one issue. Like the explainer it
// is a total, side-effect-free dispatch on the issue type; it only describes
// commands, it never runs them.
//
// Safety contract: any proposal containing an unsafe action has
// RequiresApproval set, and callers must not act on such a proposal without an
// explicit approval signal.
type Proposer struct{}

// NewProposer constructs a Proposer.
func NewProposer() *Proposer {
	return &Proposer{}
}

// Propose returns the remediation proposal for the issue's type.
func (p *Proposer) Propose(issue models.Issue) models.RemediationProposal {
	switch issue.Type {
	case models.IssueCrashLoop:
		return p.proposeCrashLoop(issue)
	case models.IssueDeploymentDown:
		return p.proposeDeploymentDown(issue)
	case models.IssueServiceUnreachable:
		return p.proposeServiceUnreachable(issue)
	case models.IssueResourceExhaustion:
		return p.proposeResourceExhaustion(issue)
	case models.IssueImagePullError:
		return p.investigateOnly(issue, clampConfidence(issue.Confidence),
			investigate("Inspect the image pull failure", fmt.Sprintf("kubectl describe pod %s -n %s", issue.Resource.Name, issue.Resource.Namespace), &issue.Resource),
			investigate("List pull-related events", fmt.Sprintf("kubectl get events -n %s --field-selector involvedObject.name=%s", issue.Resource.Namespace, issue.Resource.Name), &issue.Resource),
		)
	case models.IssueNetworkPolicyBlock:
		// Network issues are hard to diagnose automatically; damp trust in the
		// suggested direction.
		return p.investigateOnly(issue, clampConfidence(issue.Confidence*0.7),
			investigate("List network policies in affected namespaces", "kubectl get networkpolicies --all-namespaces", nil),
			investigate("Check CNI plugin health", "kubectl get pods -n kube-system -l k8s-app=cilium -o wide", nil),
			investigate("Verify cluster DNS", "kubectl get pods -n kube-system -l k8s-app=kube-dns", nil),
		)
	case models.IssueConfigError:
		return p.investigateOnly(issue, clampConfidence(issue.Confidence),
			investigate("Find the missing configuration reference", fmt.Sprintf("kubectl describe pod %s -n %s", issue.Resource.Name, issue.Resource.Namespace), &issue.Resource),
			investigate("List ConfigMaps and Secrets in the namespace", fmt.Sprintf("kubectl get configmaps,secrets -n %s", issue.Resource.Namespace), nil),
		)
	case models.IssueRBACDenial:
		return p.investigateOnly(issue, clampConfidence(issue.Confidence),
			investigate("Inspect the denial events", fmt.Sprintf("kubectl get events -n %s --field-selector involvedObject.name=%s", issue.Resource.Namespace, issue.Resource.Name), &issue.Resource),
			investigate("Review role bindings in the namespace", fmt.Sprintf("kubectl get rolebindings -n %s", issue.Resource.Namespace), nil),
		)
	default:
		// Unknown or unclassified types: investigation only, halved trust.
		return p.investigateOnly(issue, clampConfidence(issue.Confidence*0.5),
			investigate("Describe the affected resource", fmt.Sprintf("kubectl describe %s %s -n %s", strings.ToLower(issue.Resource.Kind), issue.Resource.Name, issue.Resource.Namespace), &issue.Resource),
			investigate("Review recent namespace events", fmt.Sprintf("kubectl get events -n %s --sort-by=.lastTimestamp", issue.Resource.Namespace), nil),
		)
	}
}

func (p *Proposer) proposeCrashLoop(issue models.Issue) models.RemediationProposal {
	res := issue.Resource
	actions := []models.Action{
		investigate("Read the crashed container's previous logs", fmt.Sprintf("kubectl logs %s -n %s --previous", res.Name, res.Namespace), &res),
		investigate("Describe the pod for restart and probe details", fmt.Sprintf("kubectl describe pod %s -n %s", res.Name, res.Namespace), &res),
	}
	rollback := []string{"No rollback needed for investigation steps."}

	if issue.Confidence > 0.8 {
		actions = append(actions, models.Action{
			Type:        models.ActionDelete,
			Description: fmt.Sprintf("Delete pod %s so its controller recreates it cleanly", res.Name),
			Command:     fmt.Sprintf("kubectl delete pod %s -n %s", res.Name, res.Namespace),
			Resource:    &res,
			Safe:        false,
			Reversible:  true,
		})
		rollback = []string{
			"The controller recreates the pod automatically after deletion.",
			"If the new pod also crash loops, roll back the last deployment revision.",
		}
	}

	// Crash loops always demand an approval gate, even when only investigation
	// steps were emitted. This is deliberate conservatism for the most severe
	// category and diverges from the other builders.
	return models.RemediationProposal{
		RequiresApproval:     true,
		Actions:              actions,
		Confidence:           clampConfidence(issue.Confidence),
		EstimatedDowntime:    "Seconds while the controller replaces the pod",
		RollbackInstructions: rollback,
		ApprovalReason:       "Crash loop remediation may restart workloads",
	}
}

func (p *Proposer) proposeDeploymentDown(issue models.Issue) models.RemediationProposal {
	res := issue.Resource
	actions := []models.Action{
		investigate("Describe the deployment and rollout state", fmt.Sprintf("kubectl describe deployment %s -n %s", res.Name, res.Namespace), &res),
		investigate("Inspect the pods behind the deployment", fmt.Sprintf("kubectl get pods -n %s -o wide", res.Namespace), nil),
		{
			Type:        models.ActionRestart,
			Description: fmt.Sprintf("Restart deployment %s to replace stuck replicas", res.Name),
			Command:     fmt.Sprintf("kubectl rollout restart deployment/%s -n %s", res.Name, res.Namespace),
			Resource:    &res,
			Safe:        false,
			Reversible:  true,
		},
	}

	if symptomsMention(issue, "resource", "capacity", "insufficient") {
		actions = append(actions, models.Action{
			Type:        models.ActionScale,
			Description: fmt.Sprintf("Scale %s down to relieve resource pressure, then back up", res.Name),
			Command:     fmt.Sprintf("kubectl scale deployment/%s -n %s --replicas=1", res.Name, res.Namespace),
			Resource:    &res,
			Safe:        false,
			Reversible:  true,
		})
	}

	return models.RemediationProposal{
		RequiresApproval:  true,
		Actions:           actions,
		Confidence:        clampConfidence(issue.Confidence),
		EstimatedDowntime: "Rolling restart; capacity dips until new replicas are ready",
		RollbackInstructions: []string{
			fmt.Sprintf("Undo the rollout with: kubectl rollout undo deployment/%s -n %s", res.Name, res.Namespace),
			"Restore the original replica count if it was changed.",
		},
		ApprovalReason: "Restarting a deployment disrupts running replicas",
	}
}

func (p *Proposer) proposeServiceUnreachable(issue models.Issue) models.RemediationProposal {
	res := issue.Resource
	actions := []models.Action{
		investigate("Check the service's endpoints", fmt.Sprintf("kubectl get endpoints %s -n %s", res.Name, res.Namespace), &res),
		investigate("Compare the service selector with pod labels", fmt.Sprintf("kubectl describe service %s -n %s", res.Name, res.Namespace), &res),
	}
	rollback := []string{"No rollback needed for investigation steps."}
	requiresApproval := false
	reason := ""

	if symptomsMention(issue, "loadbalancer") && issue.Confidence > 0.8 {
		actions = append(actions, models.Action{
			Type:        models.ActionDelete,
			Description: fmt.Sprintf("Delete service %s so the cloud provider provisions a fresh load balancer", res.Name),
			Command:     fmt.Sprintf("kubectl delete service %s -n %s", res.Name, res.Namespace),
			Resource:    &res,
			Safe:        false,
			Reversible:  false,
		})
		rollback = []string{
			"IRREVERSIBLE: recreating the LoadBalancer assigns a new external IP; the previous address cannot be restored.",
			"Re-apply the service manifest, wait for a new ingress address, then update DNS records.",
		}
		requiresApproval = true
		reason = "Recreating a LoadBalancer changes its external address"
	}

	return models.RemediationProposal{
		RequiresApproval:     requiresApproval,
		Actions:              actions,
		Confidence:           clampConfidence(issue.Confidence),
		EstimatedDowntime:    "Minutes while a new load balancer provisions, if recreated",
		RollbackInstructions: rollback,
		ApprovalReason:       reason,
	}
}

func (p *Proposer) proposeResourceExhaustion(issue models.Issue) models.RemediationProposal {
	res := issue.Resource
	actions := []models.Action{
		investigate("Compare memory usage against limits", fmt.Sprintf("kubectl top pod %s -n %s", res.Name, res.Namespace), &res),
		investigate("Check the container's last termination state", fmt.Sprintf("kubectl describe pod %s -n %s", res.Name, res.Namespace), &res),
		{
			Type:        models.ActionDelete,
			Description: fmt.Sprintf("Delete pod %s to clear the OOM kill loop", res.Name),
			Command:     fmt.Sprintf("kubectl delete pod %s -n %s", res.Name, res.Namespace),
			Resource:    &res,
			Safe:        false,
			Reversible:  true,
		},
	}

	return models.RemediationProposal{
		RequiresApproval:  true,
		Actions:           actions,
		Confidence:        clampConfidence(issue.Confidence),
		EstimatedDowntime: "Seconds while the controller replaces the pod",
		RollbackInstructions: []string{
			"The controller recreates the pod automatically after deletion.",
			"A lasting fix needs adjusted memory limits; deletion alone will recur.",
		},
		ApprovalReason: "Deleting a pod interrupts its in-flight work",
	}
}

func (p *Proposer) investigateOnly(issue models.Issue, confidence float64, actions ...models.Action) models.RemediationProposal {
	return models.RemediationProposal{
		RequiresApproval:     false,
		Actions:              actions,
		Confidence:           confidence,
		EstimatedDowntime:    "None (read-only investigation)",
		RollbackInstructions: []string{"No rollback needed for investigation steps."},
	}
}

func investigate(description, command string, res *models.ResourceReference) models.Action {
	return models.Action{
		Type:        models.ActionInvestigate,
		Description: description,
		Command:     command,
		Resource:    res,
		Safe:        true,
		Reversible:  true,
	}
}

func symptomsMention(issue models.Issue, keywords ...string) bool {
	for _, symptom := range issue.Symptoms {
		lower := strings.ToLower(symptom)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
