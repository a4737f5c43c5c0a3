package notification

// TLSPolicyFromEncryption exposes tlsPolicyFromEncryption for external tests.
var TLSPolicyFromEncryption = tlsPolicyFromEncryption
