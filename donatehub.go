package donatehub

const Version = "v0.3.1"

// PointsPerUSD is the credit rate of the loyalty program: a donor that opts
// into points trades 10% of the donated value for 100 points per gross dollar.
const PointsPerUSD = 100
