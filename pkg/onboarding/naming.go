package onboarding

import "strings"

// EntryName derives the registry entry name for a serial number.
// Deterministic on purpose: replays and resumed runs must converge on
// the same entry, and collisions must be detectable.
func EntryName(serialNumber string) string {
	return "thing-" + serialNumber
}

// PolicyName derives the authorization policy name for a device
// class: the device group plus the root segment of its topic
// namespace. All devices of a class share one policy.
func PolicyName(deviceGroup, topicNamespace string) string {
	root := topicNamespace
	if i := strings.Index(topicNamespace, "/"); i > 0 {
		root = topicNamespace[:i]
	}

	return "pol-" + deviceGroup + "-" + root
}

// PolicyScope returns the shared parent namespace the policy document
// covers: the device topic minus its device-specific last segment
func PolicyScope(topicNamespace string) string {
	if i := strings.LastIndex(topicNamespace, "/"); i > 0 {
		return topicNamespace[:i]
	}

	return topicNamespace
}

// NamespaceUnderRoot reports whether a device topic namespace falls
// under the deployment's configured root topic (MQTT-style, a
// trailing /# wildcard covers the whole subtree)
func NamespaceUnderRoot(namespace, root string) bool {
	root = strings.TrimSpace(root)

	if root == "" || root == "#" {
		return true
	}

	if strings.HasSuffix(root, "/#") {
		prefix := strings.TrimSuffix(root, "/#")
		return namespace == prefix || strings.HasPrefix(namespace, prefix+"/")
	}

	return namespace == root
}
