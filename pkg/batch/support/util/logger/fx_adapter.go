package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter routes Fx container events to the package logger.
// Container wiring noise goes to DEBUG, failures go to ERROR.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter creates a new instance of FxLoggerAdapter.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent logs events from Fx.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("OnStart hook executing: %s", trimFuncSuffix(e.FunctionName))
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("OnStart hook failed: %s, error: %v", trimFuncSuffix(e.FunctionName), e.Err)
			return
		}
		Debugf("OnStart hook executed: %s (%s)", trimFuncSuffix(e.FunctionName), e.Runtime)
	case *fxevent.OnStopExecuting:
		Debugf("OnStop hook executing: %s", trimFuncSuffix(e.FunctionName))
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("OnStop hook failed: %s, error: %v", trimFuncSuffix(e.FunctionName), e.Err)
			return
		}
		Debugf("OnStop hook executed: %s (%s)", trimFuncSuffix(e.FunctionName), e.Runtime)
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Supply failed for %s: %v", e.TypeName, e.Err)
			return
		}
		Debugf("Supplied: %s", e.TypeName)
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("Provide failed in %s: %v", trimFuncSuffix(e.ConstructorName), e.Err)
			return
		}
		Debugf("Provided by %s: %s", trimFuncSuffix(e.ConstructorName), strings.Join(e.OutputTypeNames, ", "))
	case *fxevent.Invoking:
		Debugf("Invoking: %s", trimFuncSuffix(e.FunctionName))
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Invoke failed: %s, error: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		Infof("Received signal %s, stopping.", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Stop failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("Start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Rollback failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Start failed: %v", e.Err)
			return
		}
		Debugf("Container started.")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("Custom logger initialization failed: %v", e.Err)
			return
		}
		Debugf("Custom logger initialized: %s", e.ConstructorName)
	}
}

// trimFuncSuffix removes the ".funcN" suffix Fx reports for closures so that
// the enclosing constructor name is logged instead.
func trimFuncSuffix(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		return funcName[:idx]
	}
	return funcName
}
