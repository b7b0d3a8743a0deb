package payroll

import "math"

// Contribution holds the employee and employer shares of a statutory
// deduction, in ringgit.
type Contribution struct {
	Employee float64 `json:"employee"`
	Employer float64 `json:"employer"`
}

// Line is one employee's computed payroll breakdown. PCB and CP38 default
// to zero and are adjusted per pay run.
type Line struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	BasicSalary   float64 `json:"basic_salary"`
	PCB           float64 `json:"pcb"`
	CP38          float64 `json:"cp38"`
	EPFEmployee   float64 `json:"epf_employee"`
	EPFEmployer   float64 `json:"epf_employer"`
	SOCSOEmployee float64 `json:"socso_employee"`
	SOCSOEmployer float64 `json:"socso_employer"`
	EISEmployee   float64 `json:"eis_employee"`
	EISEmployer   float64 `json:"eis_employer"`
}

// Summary aggregates a pay run across all employees.
type Summary struct {
	TotalEmployees     int     `json:"total_employees"`
	TotalBasicSalary   float64 `json:"total_basic_salary"`
	TotalPCB           float64 `json:"total_pcb"`
	TotalCP38          float64 `json:"total_cp38"`
	TotalEPFEmployee   float64 `json:"total_epf_employee"`
	TotalEPFEmployer   float64 `json:"total_epf_employer"`
	TotalSOCSOEmployee float64 `json:"total_socso_employee"`
	TotalSOCSOEmployer float64 `json:"total_socso_employer"`
	TotalEISEmployee   float64 `json:"total_eis_employee"`
	TotalEISEmployer   float64 `json:"total_eis_employer"`
	TotalNetSalary     float64 `json:"total_net_salary"`
}

// contributionCeiling is the wage ceiling for SOCSO and EIS, effective
// October 2024.
const contributionCeiling = 6000

// CalculateEPF returns EPF contributions for a monthly salary. The employee
// share is 11%; the employer share is 13% up to RM5000 and 12% above.
func CalculateEPF(salary float64) Contribution {
	employerRate := 0.13
	if salary > 5000 {
		employerRate = 0.12
	}
	return Contribution{
		Employee: round2(salary * 0.11),
		Employer: round2(salary * employerRate),
	}
}

// CalculateSOCSO returns SOCSO (Act 4) contributions from the PERKESO
// schedule, capped at the RM6000 wage ceiling.
func CalculateSOCSO(salary float64) Contribution {
	capped := math.Min(salary, contributionCeiling)

	switch {
	case capped <= 30:
		return Contribution{Employee: 0.10, Employer: 0.40}
	case capped <= 50:
		return Contribution{Employee: 0.20, Employer: 0.70}
	case capped <= 70:
		return Contribution{Employee: 0.30, Employer: 1.10}
	case capped <= 100:
		return Contribution{Employee: 0.40, Employer: 1.50}
	case capped <= 140:
		return Contribution{Employee: 0.60, Employer: 2.10}
	case capped <= 200:
		return Contribution{Employee: 0.85, Employer: 2.95}
	case capped <= 300:
		return Contribution{Employee: 1.25, Employer: 4.35}
	}

	// Above RM300 the schedule steps per RM100 bracket: RM0.50 on the
	// employee side, alternating RM1.80/RM1.70 on the employer side.
	brackets := math.Min(math.Ceil(capped/100), 60)
	employee := 1.25 + (brackets-3)*0.5
	addOn := math.Floor((brackets-3)/2) * 3.5
	if math.Mod(brackets-3, 2) != 0 {
		addOn += 1.8
	}
	return Contribution{Employee: employee, Employer: 4.35 + addOn}
}

// CalculateEIS returns EIS (Act 800) contributions from the PERKESO
// schedule, capped at the RM6000 wage ceiling. Employee and employer shares
// are equal.
func CalculateEIS(salary float64) Contribution {
	capped := math.Min(salary, contributionCeiling)

	var c float64
	switch {
	case capped <= 30:
		c = 0.05
	case capped <= 50:
		c = 0.10
	case capped <= 70:
		c = 0.15
	case capped <= 100:
		c = 0.20
	case capped <= 140:
		c = 0.25
	case capped <= 200:
		c = 0.35
	default:
		// RM0.20 per RM100 bracket, offset by RM0.10.
		c = math.Ceil(capped/100)*0.2 - 0.1
	}
	return Contribution{Employee: c, Employer: c}
}

// BuildLine computes the payroll line for one employee. The stored employer
// EPF amount overrides the rate calculation when set.
func BuildLine(e Employee) Line {
	epf := CalculateEPF(e.BasicSalary)
	socso := CalculateSOCSO(e.BasicSalary)
	eis := CalculateEIS(e.BasicSalary)
	return Line{
		EmployeeID:    e.ID,
		EmployeeName:  e.Name,
		BasicSalary:   e.BasicSalary,
		EPFEmployee:   epf.Employee,
		EPFEmployer:   e.EPFEmployer,
		SOCSOEmployee: socso.Employee,
		SOCSOEmployer: socso.Employer,
		EISEmployee:   eis.Employee,
		EISEmployer:   eis.Employer,
	}
}

// NetSalary is the basic salary less all employee-side deductions.
func NetSalary(l Line) float64 {
	return l.BasicSalary - (l.PCB + l.CP38 + l.EPFEmployee + l.SOCSOEmployee + l.EISEmployee)
}

// Summarize totals a set of payroll lines.
func Summarize(lines []Line) Summary {
	var s Summary
	s.TotalEmployees = len(lines)
	for _, l := range lines {
		s.TotalBasicSalary += l.BasicSalary
		s.TotalPCB += l.PCB
		s.TotalCP38 += l.CP38
		s.TotalEPFEmployee += l.EPFEmployee
		s.TotalEPFEmployer += l.EPFEmployer
		s.TotalSOCSOEmployee += l.SOCSOEmployee
		s.TotalSOCSOEmployer += l.SOCSOEmployer
		s.TotalEISEmployee += l.EISEmployee
		s.TotalEISEmployer += l.EISEmployer
		s.TotalNetSalary += NetSalary(l)
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
