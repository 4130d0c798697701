/*
Package resilience provides the circuit breakers guarding page navigation.

An origin that keeps timing out or refusing connections should not make every
open_page call wait for the full navigation timeout. A Group keeps one circuit
per origin host: calls to a failing host fail fast while its circuit is open,
and calls to other hosts are unaffected.

	breakers := resilience.NewGroup(resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		IsFailure: isTransportFailure,
	})

	err := breakers.Do(ctx, target.Host, func(ctx context.Context) error {
		return fetch(ctx, target)
	})

States:

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[probe ok]-> Closed
	                                  ^                     |
	                                  +----[probe fails]----+

Errors rejected by IsFailure (bad URLs, cancelled contexts) reset the failure
streak like a success, so caller mistakes never open a circuit.
*/
package resilience
