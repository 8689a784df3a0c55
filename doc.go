/*
Package hwfsm compiles a typed object-oriented program into a network of
synchronous finite state machines.

Each method reachable from a hardware entry point becomes one or more state
machines, one per configured instance. A state executes within one or more
clock cycles: assignments to variables take effect immediately, assignments to
signals at the next clock edge. Control flow becomes state transitions,
operations that do not fit in a clock cycle get a dedicated wait state and
method calls become a handshake between machines:

	caller                       callee
	params <= args
	started <= true      --->    state 0: if started then go to state 1
	                             ...
	wait for finished    <---    final state: finished <= true
	started <= false     --->    if not started then finished <= false, go to 0
	read return value

Machines are replicated statically for parallel and recursive invocations; the
number of instances of a member comes from its configuration.

The sim package runs the generated machines, which is how the transformations
are tested.

*/
package hwfsm
