// Package newsletter selects the monthly newsletter content and delivers it to
// every active subscriber.
//
// Delivery is at least once per run and best effort per recipient: a failing
// address is recorded in the Result and the batch continues. Two Dispatcher
// implementations exist. Sequential sends one mail at a time and pauses after
// every attempt. Pooled spreads the batch over a bounded number of workers that
// share one rate limiter, so the aggregate pace never exceeds one send per
// interval.
package newsletter
