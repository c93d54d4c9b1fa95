// Package statemachines provides hierarchical state chart machinery.
//
// Package 'chart' defines and validates charts, package 'machine' runs
// them, and package 'service' puts a fleet of machines behind HTTP and
// MQTT.  Command-line tools are in 'cmd'.
package statemachines
