package utils

import (
	"fmt"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// BandExpressions holds a parsed list of band math expressions of
// the form "name=expression" or a bare namespace. Expression
// variables refer to granule namespaces. ExprNames keeps the output
// name per expression, VarList the union of referenced namespaces
// and ExprVarRef the namespaces referenced by each expression.
type BandExpressions struct {
	ExprText    []string
	ExprNames   []string
	Expressions []*goeval.EvaluableExpression
	VarList     []string
	ExprVarRef  [][]string
}

func ParseBandExpressions(bands []string) (*BandExpressions, error) {
	bandExpr := &BandExpressions{}
	varMap := make(map[string]struct{})
	for _, bandRaw := range bands {
		band := strings.TrimSpace(bandRaw)
		if len(band) == 0 {
			return nil, fmt.Errorf("empty band expression")
		}

		name := band
		exprText := band
		if iEq := strings.Index(band, "="); iEq >= 0 {
			name = strings.TrimSpace(band[:iEq])
			exprText = strings.TrimSpace(band[iEq+1:])
			if len(name) == 0 || len(exprText) == 0 {
				return nil, fmt.Errorf("invalid band expression: %s", bandRaw)
			}
		}

		expr, err := goeval.NewEvaluableExpression(exprText)
		if err != nil {
			return nil, fmt.Errorf("parsing error in band expression '%s': %v", bandRaw, err)
		}

		varRef := []string{}
		varSeen := make(map[string]struct{})
		for _, token := range expr.Tokens() {
			if token.Kind == goeval.VARIABLE {
				varName, ok := token.Value.(string)
				if !ok {
					return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
				}
				if _, found := varSeen[varName]; !found {
					varSeen[varName] = struct{}{}
					varRef = append(varRef, varName)
				}
				if _, found := varMap[varName]; !found {
					varMap[varName] = struct{}{}
					bandExpr.VarList = append(bandExpr.VarList, varName)
				}
			}
		}

		bandExpr.ExprText = append(bandExpr.ExprText, exprText)
		bandExpr.ExprNames = append(bandExpr.ExprNames, name)
		bandExpr.Expressions = append(bandExpr.Expressions, expr)
		bandExpr.ExprVarRef = append(bandExpr.ExprVarRef, varRef)
	}
	return bandExpr, nil
}

// FindExpr looks up the parsed expression published under name.
func (bandExpr *BandExpressions) FindExpr(name string) (*goeval.EvaluableExpression, []string, error) {
	for i, exprName := range bandExpr.ExprNames {
		if strings.EqualFold(exprName, name) {
			return bandExpr.Expressions[i], bandExpr.ExprVarRef[i], nil
		}
	}
	return nil, nil, fmt.Errorf("band expression not found: %s", name)
}

// EvalExpressions evaluates every expression against per-namespace
// scalar inputs. Missing variables yield no output entry for that
// expression rather than an error.
func (bandExpr *BandExpressions) EvalExpressions(values map[string]float64) (map[string]float64, error) {
	results := make(map[string]float64)
	for ix, expr := range bandExpr.Expressions {
		noData := false
		parameters := make(map[string]interface{}, len(bandExpr.ExprVarRef[ix]))
		for _, variable := range bandExpr.ExprVarRef[ix] {
			val, ok := values[variable]
			if !ok {
				noData = true
				break
			}
			parameters[variable] = float32(val)
		}
		if noData {
			continue
		}

		result, err := expr.Evaluate(parameters)
		if err != nil {
			return nil, fmt.Errorf("eval '%v' error: %v", bandExpr.ExprText[ix], err)
		}

		val, ok := result.(float32)
		if !ok {
			return nil, fmt.Errorf("failed to cast eval results '%v' to float32, %v", result, bandExpr.ExprText[ix])
		}
		results[bandExpr.ExprNames[ix]] = float64(val)
	}
	return results, nil
}
