// Package alerting evaluates alert rules against a version's planning data
// and keeps the raised alerts idempotent across repeated runs.
package alerting

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/evaluator"
	"github.com/Ramsey-B/sage/pkg/formula"
	"github.com/Ramsey-B/sage/pkg/horizon"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// RuleSource lists the alert rules to evaluate.
type RuleSource interface {
	ListEnabled(ctx context.Context) ([]models.AlertRule, error)
}

// SettingSource resolves the time setting a rule is scoped to.
type SettingSource interface {
	Get(ctx context.Context, id string) (*models.TimeSetting, error)
}

// AlertSink reads and writes raised alerts.
type AlertSink interface {
	ListUnresolved(ctx context.Context, versionID string) ([]models.Alert, error)
	Create(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	RefreshValue(ctx context.Context, id string, actualValue float64, message string) error
}

// Engine runs alert evaluation for one version at a time.
type Engine struct {
	rules    RuleSource
	settings SettingSource
	alerts   AlertSink
	resolver *horizon.Resolver
	logger   ectologger.Logger
}

func NewEngine(rules RuleSource, settings SettingSource, alerts AlertSink, resolver *horizon.Resolver, logger ectologger.Logger) *Engine {
	return &Engine{
		rules:    rules,
		settings: settings,
		alerts:   alerts,
		resolver: resolver,
		logger:   logger,
	}
}

// EvaluateVersion checks every enabled rule against the version's data.
// Re-running over unchanged data refreshes existing unresolved alerts
// instead of duplicating them. A resolved alert whose condition still holds
// is raised again as a new alert.
func (e *Engine) EvaluateVersion(ctx context.Context, versionID string, registry *formula.Registry, data []models.PlanningData) (*models.EvaluateAlertsResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "alerting.EvaluateVersion")
	defer span.End()

	log := e.logger.WithContext(ctx).WithField("version_id", versionID)

	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := e.alerts.ListUnresolved(ctx, versionID)
	if err != nil {
		return nil, err
	}
	unresolved := map[string]*models.Alert{}
	for i := range existing {
		alert := &existing[i]
		unresolved[alertKey(alert.RuleID, alert.KeyFigureID, alert.TimePeriod)] = alert
	}

	eval := evaluator.New(registry, data)
	response := &models.EvaluateAlertsResponse{Alerts: []models.Alert{}}

	for i := range rules {
		rule := &rules[i]
		kf, ok := registry.FigureByID(rule.KeyFigureID)
		if !ok {
			log.WithField("rule_id", rule.ID).Warn("alert rule references unknown key figure, skipping")
			continue
		}

		setting, err := e.settings.Get(ctx, rule.TimeSettingID)
		if err != nil {
			return nil, err
		}
		if setting == nil {
			log.WithField("rule_id", rule.ID).Warn("alert rule references missing time setting, skipping")
			continue
		}
		periods, err := e.resolver.Resolve(setting, rule.Level)
		if err != nil {
			return nil, err
		}

		for _, period := range periods {
			result, err := eval.Evaluate(kf.Code, period.Key)
			if err != nil {
				return nil, err
			}
			response.Evaluated++
			if !result.HasData || !breaches(rule.Operator, result.Value, rule.Threshold) {
				continue
			}

			message := breachMessage(kf.Code, rule.Operator, result.Value, rule.Threshold, period.Key)
			if open, ok := unresolved[alertKey(rule.ID, rule.KeyFigureID, period.Key)]; ok {
				if err := e.alerts.RefreshValue(ctx, open.ID, result.Value, message); err != nil {
					return nil, err
				}
				open.ActualValue = result.Value
				open.Message = message
				response.Refreshed++
				response.Alerts = append(response.Alerts, *open)
				continue
			}

			created, err := e.alerts.Create(ctx, &models.Alert{
				RuleID:      rule.ID,
				VersionID:   versionID,
				KeyFigureID: rule.KeyFigureID,
				TimePeriod:  period.Key,
				PeriodType:  rule.Level,
				AlertType:   rule.AlertType,
				Severity:    rule.Severity,
				Message:     message,
				ActualValue: result.Value,
				Threshold:   rule.Threshold,
			})
			if err != nil {
				return nil, err
			}
			response.Raised++
			response.Alerts = append(response.Alerts, *created)
		}
	}

	log.WithFields(map[string]any{
		"evaluated": response.Evaluated,
		"raised":    response.Raised,
		"refreshed": response.Refreshed,
	}).Info("alert evaluation complete")
	return response, nil
}

func alertKey(ruleID, keyFigureID, period string) string {
	return ruleID + "|" + keyFigureID + "|" + period
}

func breaches(op models.AlertOperator, value, threshold float64) bool {
	switch op {
	case models.OperatorGreaterThan:
		return value > threshold
	case models.OperatorGreaterThanEqual:
		return value >= threshold
	case models.OperatorLessThan:
		return value < threshold
	case models.OperatorLessThanEqual:
		return value <= threshold
	case models.OperatorEqual:
		return value == threshold
	}
	return false
}

func breachMessage(code string, op models.AlertOperator, value, threshold float64, period string) string {
	var word string
	switch op {
	case models.OperatorGreaterThan, models.OperatorGreaterThanEqual:
		word = "above"
	case models.OperatorLessThan, models.OperatorLessThanEqual:
		word = "below"
	default:
		word = "at"
	}
	return fmt.Sprintf("%s is %.2f, %s threshold %.2f for %s", code, value, word, threshold, period)
}
