// Package output projects the externally consumed values out of a resolved
// resource graph: the load balancer DNS name, the image repository URL, the
// cluster and service names, and the URL clients should use to reach the
// agents.
//
// Values whose content is only known once the infrastructure exists are
// projected as references into the graph; everything else is a literal.
package output
